package gateway

import (
	"errors"
	"net/http"

	"github.com/fsh-formation/templater/internal/airtable"
	"github.com/fsh-formation/templater/internal/docgen"
	"github.com/fsh-formation/templater/internal/docx"
	"github.com/fsh-formation/templater/internal/platform/httpx"
)

// respondError maps pipeline failures onto the problem taxonomy. The
// core never produces a partial buffer, so by the time an error lands
// here nothing has been written to the response.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var syntaxErr *docx.SyntaxError
	var requestErr *airtable.RequestError
	switch {
	case errors.Is(err, airtable.ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Record Not Found", err.Error())
	case errors.Is(err, docgen.ErrTemplateFetch):
		httpx.Problem(w, http.StatusBadGateway, "Template Fetch Failed", err.Error())
	case errors.Is(err, docx.ErrInvalidContainer):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Template Load Failed", err.Error())
	case errors.As(err, &syntaxErr):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Template Syntax Error", syntaxErr.Error())
	case errors.As(err, &requestErr):
		httpx.Problem(w, http.StatusBadGateway, "Data Store Failure", requestErr.Error())
	default:
		httpx.RespondError(w, err)
	}
}
