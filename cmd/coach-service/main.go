package main

import (
	"os"

	"github.com/coachloop/coachloop/server/coachservice"
)

func main() {
	if err := coachservice.Run(); err != nil {
		os.Exit(1)
	}
}
