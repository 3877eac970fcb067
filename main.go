package main

import (
	"log"

	"github.com/studypath/api/app"
)

func main() {
	if err := app.SetupAndRun(); err != nil {
		log.Fatal(err)
	}
}
