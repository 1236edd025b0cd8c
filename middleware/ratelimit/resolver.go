package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"flowershop-gateway/middleware/ratelimit/domain"
)

// UnknownClient é o identificador IP quando nada no request identifica o cliente.
const UnknownClient = "unknown"

// Resolver extrai o identificador de um request conforme a estratégia da rota.
type Resolver struct {
	// TrustXForwardedFor faz o primeiro hop do X-Forwarded-For vencer o RemoteAddr.
	// Só ligue atrás de um load balancer confiável.
	TrustXForwardedFor bool

	// UserHeader é um header preenchido por um proxy confiável com o id do usuário
	// (ex.: X-User-ID). Vazio desliga.
	UserHeader string

	// CurrentUser resolve o usuário autenticado (ex.: verificador JWT).
	CurrentUser func(r *http.Request) (string, bool)
}

// Identify retorna o identificador do cliente para a estratégia.
//
// StrategyUser sem usuário resolvido retorna domain.ErrUnauthenticated; nunca
// cai para o IP.
func (rv Resolver) Identify(r *http.Request, strategy domain.Strategy) (string, error) {
	switch strategy {
	case domain.StrategyIP:
		return ClientIP(r, rv.TrustXForwardedFor), nil
	case domain.StrategyUser:
		if id, ok := rv.user(r); ok {
			return id, nil
		}
		return "", domain.ErrUnauthenticated
	}
	return "", &domain.StrategyError{Value: string(strategy)}
}

func (rv Resolver) user(r *http.Request) (string, bool) {
	if rv.CurrentUser != nil {
		if id, ok := rv.CurrentUser(r); ok && id != "" {
			return id, true
		}
	}
	if id, ok := PrincipalFromContext(r.Context()); ok {
		return id, true
	}
	if rv.UserHeader != "" {
		if id := strings.TrimSpace(r.Header.Get(rv.UserHeader)); id != "" {
			return id, true
		}
	}
	return "", false
}

// Endpoint é o path do request, sem query string.
func Endpoint(r *http.Request) string {
	return r.URL.Path
}

// ClientIP: host do RemoteAddr, depois primeiro hop do X-Forwarded-For, depois
// "unknown". Com trustXFF o X-Forwarded-For vem primeiro.
func ClientIP(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if ip := firstForwardedFor(r); ip != "" {
			return ip
		}
	}
	if ip := remoteHost(r); ip != "" {
		return ip
	}
	if ip := firstForwardedFor(r); ip != "" {
		return ip
	}
	return UnknownClient
}

func remoteHost(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// pega o primeiro IP do X-Forwarded-For (cliente original)
func firstForwardedFor(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}
