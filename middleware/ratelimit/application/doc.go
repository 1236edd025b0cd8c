// Package application contém os casos de uso do gateway: admissão por rate
// limit (Service.Admit) e vagas de concorrência (ConcurrencyService).
//
// Depende apenas do pacote domain e não conhece net/http.
package application
