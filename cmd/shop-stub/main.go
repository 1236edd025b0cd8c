// Command shop-stub é um upstream falso da loja para testar o gateway
// localmente (flowershop serve + flowershop loadtest).
package main

import (
	"net/http"
	"os"

	"flowershop-gateway/internal/logging"
)

func main() {
	log := logging.New(os.Getenv("LOG_LEVEL"), false)

	addr := ":8000"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	log.Info().Str("addr", addr).Msg("shop stub listening")
	if err := http.ListenAndServe(addr, newRouter(log)); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
