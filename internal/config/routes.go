package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"flowershop-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

//go:embed default_routes.yaml
var defaultRoutes []byte

// RouteEntry é uma entrada da tabela YAML.
type RouteEntry struct {
	Method   string `yaml:"method"`
	Path     string `yaml:"path"`
	Strategy string `yaml:"strategy"`
	Policy   string `yaml:"policy"`
}

type routeFile struct {
	Routes []RouteEntry `yaml:"routes"`
}

// Route é uma rota com regra já validada.
type Route struct {
	Method string
	Path   string
	Rule   domain.Rule
}

func (r Route) String() string {
	return fmt.Sprintf("%s %s %s %s", r.Method, r.Path, r.Rule.Strategy, r.Rule.Policy)
}

// RouteError aponta a entrada inválida da tabela.
type RouteError struct {
	Index  int
	Method string
	Path   string
	Err    error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("route #%d (%s %s): %v", e.Index, e.Method, e.Path, e.Err)
}

func (e *RouteError) Unwrap() error { return e.Err }

// LoadRoutes lê a tabela de rotas do arquivo; caminho vazio usa a tabela embutida.
func LoadRoutes(path string) ([]Route, error) {
	if path == "" {
		return ParseRoutes(defaultRoutes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	routes, err := ParseRoutes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return routes, nil
}

// DefaultRoutes devolve a tabela embutida.
func DefaultRoutes() []Route {
	routes, err := ParseRoutes(defaultRoutes)
	if err != nil {
		panic(err)
	}
	return routes
}

// ParseRoutes decodifica e valida a tabela. Campos desconhecidos, método
// inválido, path sem "/" inicial, rota duplicada, estratégia ou política
// inválidas são erros de configuração.
func ParseRoutes(data []byte) ([]Route, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file routeFile
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode routes: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Routes))
	out := make([]Route, 0, len(file.Routes))
	for i, entry := range file.Routes {
		method := strings.ToUpper(strings.TrimSpace(entry.Method))
		path := strings.TrimSpace(entry.Path)
		fail := func(err error) error {
			return &RouteError{Index: i, Method: method, Path: path, Err: err}
		}

		if !validMethod(method) {
			return nil, fail(fmt.Errorf("unsupported method %q", entry.Method))
		}
		if !strings.HasPrefix(path, "/") {
			return nil, fail(errors.New("path must start with /"))
		}
		id := method + " " + path
		if _, dup := seen[id]; dup {
			return nil, fail(errors.New("duplicate route"))
		}
		seen[id] = struct{}{}

		strategy, err := domain.ParseStrategy(entry.Strategy)
		if err != nil {
			return nil, fail(err)
		}
		policy, err := domain.ParsePolicy(entry.Policy)
		if err != nil {
			return nil, fail(err)
		}
		out = append(out, Route{Method: method, Path: path, Rule: domain.Rule{Strategy: strategy, Policy: policy}})
	}
	return out, nil
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
