package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/chainhabit/chainhabit/habitservice"
)

func main() {
	if err := habitservice.Run(); err != nil {
		log.Error().Err(err).Msg("habit service exit")
		os.Exit(1)
	}
}
