package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	service "github.com/okian/epidash/internal/app"
	"github.com/okian/epidash/internal/domain/model"
)

// inputsRequest is the body of POST /api/sessions/{id}/inputs. Omitted
// offsets default to the full range.
type inputsRequest struct {
	Start   *int   `json:"start"`
	End     *int   `json:"end"`
	Country string `json:"country"`
}

func (req inputsRequest) inputs(c service.Controls) model.Inputs {
	in := model.Inputs{StartOffset: c.Min, EndOffset: c.Max, Country: req.Country}
	if req.Start != nil {
		in.StartOffset = *req.Start
	}
	if req.End != nil {
		in.EndOffset = *req.End
	}
	return in.Normalize()
}

// queryInputs reads start, end and country from the query string.
func queryInputs(r *http.Request, c service.Controls) (model.Inputs, error) {
	q := r.URL.Query()
	start, err := offsetParam(q, "start")
	if err != nil {
		return model.Inputs{}, err
	}
	end, err := offsetParam(q, "end")
	if err != nil {
		return model.Inputs{}, err
	}
	req := inputsRequest{Start: start, End: end, Country: q.Get("country")}
	return req.inputs(c), nil
}

func offsetParam(q url.Values, name string) (*int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer offset", ErrBadRequest, name)
	}
	return &n, nil
}
