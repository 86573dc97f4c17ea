package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"recommendation-dashboard/internal/analysis"
	"recommendation-dashboard/internal/loader"
	"recommendation-dashboard/internal/service"

	"github.com/go-playground/validator/v10"
)

var (
	errNoFile     = errors.New("no file uploaded")
	errBadRequest = errors.New("malformed request")
)

// bindError classifies a gin binding failure
func bindError(err error) error {
	var (
		tooLarge *http.MaxBytesError
		numErr   *strconv.NumError
		invalid  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &tooLarge):
		return err
	case errors.As(err, &numErr), errors.As(err, &invalid):
		return fmt.Errorf("%w: %v", analysis.ErrThresholdOutOfRange, err)
	default:
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
}

// describeError maps domain errors to a status code and a message fit for users
func describeError(err error) (int, string) {
	var (
		missing  *analysis.MissingColumnError
		parseErr *analysis.ParseError
		tooLarge *http.MaxBytesError
		invalid  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, fmt.Sprintf("Coluna obrigatória ausente: %s", missing.Column)
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, fmt.Sprintf("Linha %d: valor inválido em %s (%q)", parseErr.Row, parseErr.Column, parseErr.Value)
	case errors.Is(err, analysis.ErrThresholdOutOfRange), errors.As(err, &invalid):
		return http.StatusBadRequest, fmt.Sprintf("O limite deve estar entre %d e %d dias", analysis.MinThresholdDays, analysis.MaxThresholdDays)
	case errors.Is(err, loader.ErrEmptyFile):
		return http.StatusUnprocessableEntity, "O arquivo está vazio"
	case errors.Is(err, loader.ErrTooManyRows), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "O arquivo é grande demais"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "Requisição inválida"
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "Selecione um arquivo CSV"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "Nenhum arquivo carregado nesta sessão"
	default:
		return http.StatusInternalServerError, "Erro inesperado ao processar o arquivo"
	}
}
