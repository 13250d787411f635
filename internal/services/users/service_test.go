package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	email    string
	inserted bool
}

func (f *fakeRepo) CreateUser(ctx context.Context, email string) (bool, error) {
	f.email = email
	return f.inserted, nil
}

func TestService_Create_Validate(t *testing.T) {
	s := New(&fakeRepo{})

	_, err := s.Create(context.Background(), "")
	require.Error(t, err)

	_, err = s.Create(context.Background(), "not-an-email")
	require.Error(t, err)
}

func TestService_Create_NormalizesEmail(t *testing.T) {
	r := &fakeRepo{inserted: true}
	s := New(r)

	inserted, err := s.Create(context.Background(), "  A@X.Com ")
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, "a@x.com", r.email)
}

func TestService_Create_ExistingIsNoop(t *testing.T) {
	r := &fakeRepo{inserted: false}
	s := New(r)

	inserted, err := s.Create(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.False(t, inserted)
}
