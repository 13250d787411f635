package parcelapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/ParcelBox/internal/models"
	"github.com/BearBump/ParcelBox/internal/services/parcels"
	"github.com/BearBump/ParcelBox/internal/services/payments"
	"github.com/BearBump/ParcelBox/internal/services/trackings"
	"github.com/BearBump/ParcelBox/internal/services/users"
	"github.com/go-chi/chi/v5"
)

type API struct {
	parcels   *parcels.Service
	users     *users.Service
	payments  *payments.Service
	trackings *trackings.Service
}

func New(parcelsSvc *parcels.Service, usersSvc *users.Service, paymentsSvc *payments.Service, trackingsSvc *trackings.Service) *API {
	return &API{
		parcels:   parcelsSvc,
		users:     usersSvc,
		payments:  paymentsSvc,
		trackings: trackingsSvc,
	}
}

func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ParcelBox API"))
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Get("/parcels", a.listParcels)
	r.Get("/parcels/{id}", a.getParcel)
	r.Post("/parcels", a.createParcel)
	r.Delete("/parcels/{id}", a.deleteParcel)
	r.Patch("/parcels/pay/{id}", a.markPaid)

	r.Post("/users", a.createUser)

	r.Post("/create-payment-intent", a.createPaymentIntent)
	r.Post("/payments", a.recordPayment)
	r.Get("/payments/{email}", a.listPayments)

	r.Post("/tracking/{parcelId}", a.appendTracking)
	r.Get("/tracking/{parcelId}", a.getTracking)
}

func (a *API) listParcels(w http.ResponseWriter, r *http.Request) {
	ps, err := a.parcels.List(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		a.writeError(w, r, err, "Failed to get parcels")
		return
	}
	out := make([]map[string]any, 0, len(ps))
	for _, p := range ps {
		out = append(out, parcelJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getParcel(w http.ResponseWriter, r *http.Request) {
	p, err := a.parcels.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err, "Parcel not found")
		return
	}
	writeJSON(w, http.StatusOK, parcelJSON(p))
}

func (a *API) createParcel(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON body"})
		return
	}
	p, err := a.parcels.Create(r.Context(), fields)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"insertedId": p.ID.String(),
	})
}

func (a *API) deleteParcel(w http.ResponseWriter, r *http.Request) {
	n, err := a.parcels.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"deletedCount": n,
	})
}

func (a *API) markPaid(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TransactionID string `json:"transactionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON body"})
		return
	}
	n, err := a.parcels.MarkPaid(r.Context(), chi.URLParam(r, "id"), body.TransactionID)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"modifiedCount": n,
	})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON body"})
		return
	}
	inserted, err := a.users.Create(r.Context(), body.Email)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	if !inserted {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "User already exists",
			"inserted": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"inserted": true})
}

func (a *API) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount    float64 `json:"amount"`
		ParcelID  string  `json:"parcelId"`
		UserEmail string  `json:"userEmail"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON body"})
		return
	}
	secret, err := a.payments.CreateIntent(r.Context(), body.Amount, body.ParcelID, body.UserEmail)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clientSecret": secret})
}

func (a *API) recordPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParcelID      string  `json:"parcelId"`
		UserEmail     string  `json:"userEmail"`
		Amount        float64 `json:"amount"`
		TransactionID string  `json:"transactionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON body"})
		return
	}
	payment, err := a.payments.RecordPayment(r.Context(), payments.RecordInput{
		ParcelID:      body.ParcelID,
		PayerEmail:    body.UserEmail,
		Amount:        body.Amount,
		TransactionID: body.TransactionID,
	})
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"payment": paymentJSON(payment),
	})
}

func (a *API) listPayments(w http.ResponseWriter, r *http.Request) {
	ps, err := a.payments.ListForUser(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		a.writeError(w, r, err, "Failed to get payments")
		return
	}
	out := make([]map[string]any, 0, len(ps))
	for _, p := range ps {
		out = append(out, paymentJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) appendTracking(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status   string `json:"status"`
		Location string `json:"location"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid JSON body"})
		return
	}
	upd, err := a.trackings.AppendUpdate(r.Context(), chi.URLParam(r, "parcelId"), body.Status, body.Location)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"update":  updateJSON(upd),
	})
}

func (a *API) getTracking(w http.ResponseWriter, r *http.Request) {
	rec, err := a.trackings.Get(r.Context(), chi.URLParam(r, "parcelId"))
	if err != nil {
		a.writeError(w, r, err, "No tracking found for this parcel")
		return
	}
	updates := make([]map[string]any, 0, len(rec.Updates))
	for _, u := range rec.Updates {
		updates = append(updates, updateJSON(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"parcelId":  rec.ParcelID.String(),
		"createdAt": rec.CreatedAt.Format(time.RFC3339Nano),
		"updates":   updates,
	})
}

// writeError переводит ошибку в статус/тело. Дальше транспорта ошибки не
// уходят: каждый маршрут заканчивается JSON-ответом.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, models.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Invalid parcel ID"})
	case errors.Is(err, models.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "Not found"
		}
		writeJSON(w, http.StatusNotFound, map[string]any{"message": notFoundMsg})
	case errors.Is(err, payments.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"message": err.Error()})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parcelJSON раскладывает произвольные поля отправления в корень объекта,
// системные поля кладутся поверх.
func parcelJSON(p *models.Parcel) map[string]any {
	out := make(map[string]any, len(p.Data)+5)
	for k, v := range p.Data {
		out[k] = v
	}
	out["id"] = p.ID.String()
	out["created_by"] = p.CreatedBy
	out["payment_status"] = p.PaymentStatus
	out["createdAt"] = p.CreatedAt.Format(time.RFC3339Nano)
	if p.TransactionID != nil {
		out["transactionId"] = *p.TransactionID
	}
	return out
}

func paymentJSON(p *models.Payment) map[string]any {
	return map[string]any{
		"id":            p.ID.String(),
		"parcelId":      p.ParcelID.String(),
		"userEmail":     p.PayerEmail,
		"amount":        p.Amount,
		"transactionId": p.TransactionID,
		"createdAt":     p.CreatedAt.Format(time.RFC3339Nano),
	}
}

func updateJSON(u *models.TrackingUpdate) map[string]any {
	return map[string]any{
		"status":    u.Status,
		"location":  u.Location,
		"timestamp": u.EventTime.Format(time.RFC3339Nano),
	}
}
