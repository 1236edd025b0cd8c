package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// policyPattern aceita de 1 a 3 segmentos "<n>/<unidade>" separados por ';'.
var policyPattern = regexp.MustCompile(`^(\d+/[smh])(;\d+/[smh]){0,2}$`)

var unitSeconds = map[byte]int{
	's': 1,
	'm': 60,
	'h': 3600,
}

// ParsePolicy converte uma política compacta ("10/s;100/m;500/h") em janelas.
//
// Erros são *PolicyError (errors.Is(err, ErrInvalidPolicy)) e indicam bug de
// configuração, não comportamento do cliente.
func ParsePolicy(policy string) (Policy, error) {
	if policy == "" {
		return nil, &PolicyError{Policy: policy, Reason: "policy is empty"}
	}

	segments := strings.Split(policy, ";")
	if len(segments) > MaxWindows {
		return nil, &PolicyError{Policy: policy, Reason: "at most " + strconv.Itoa(MaxWindows) + " windows are allowed"}
	}
	if !policyPattern.MatchString(policy) {
		return nil, &PolicyError{Policy: policy, Reason: `each segment must look like "<count>/<s|m|h>"`}
	}

	out := make(Policy, 0, len(segments))
	for _, seg := range segments {
		slash := strings.IndexByte(seg, '/')
		n, err := strconv.Atoi(seg[:slash])
		if err != nil {
			return nil, &PolicyError{Policy: policy, Reason: "request count " + strconv.Quote(seg[:slash]) + " is out of range"}
		}
		if n <= 0 {
			return nil, &PolicyError{Policy: policy, Reason: "request count must be positive in " + strconv.Quote(seg)}
		}
		out = append(out, Window{MaxRequests: n, Seconds: unitSeconds[seg[slash+1]]})
	}
	return out, nil
}

// MustParsePolicy é como ParsePolicy mas entra em pânico. Para tabelas estáticas.
func MustParsePolicy(policy string) Policy {
	p, err := ParsePolicy(policy)
	if err != nil {
		panic(err)
	}
	return p
}

// String volta para a forma compacta. Janelas que não são exatamente 1s, 1m
// ou 1h saem em segundos ("30/90s"), forma que ParsePolicy não aceita.
func (p Policy) String() string {
	parts := make([]string, len(p))
	for i, w := range p {
		parts[i] = w.String()
	}
	return strings.Join(parts, ";")
}

func (w Window) String() string {
	n := strconv.Itoa(w.MaxRequests)
	switch w.Seconds {
	case 1:
		return n + "/s"
	case 60:
		return n + "/m"
	case 3600:
		return n + "/h"
	}
	return n + "/" + strconv.Itoa(w.Seconds) + "s"
}
