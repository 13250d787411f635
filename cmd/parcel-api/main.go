package main

func main() {
	app := mustBootstrapParcelAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !isCanceled(err) {
		panic(err)
	}
}
