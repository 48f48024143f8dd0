package app

import (
	"context"
	"errors"

	"github.com/MrWong99/mtgctx/internal/health"
	"github.com/MrWong99/mtgctx/internal/mcp/server"
	"github.com/MrWong99/mtgctx/internal/mtg"
)

// datasetsChecker fails while any cached dataset holds a cached failure.
// Datasets not fetched yet do not fail readiness.
func datasetsChecker(svc *mtg.Service) health.Checker {
	return health.Checker{
		Name: "datasets",
		Check: func(context.Context) error {
			var errs []error
			for _, d := range svc.Datasets() {
				if d.Err != nil {
					errs = append(errs, errors.New(d.String()))
				}
			}
			return errors.Join(errs...)
		},
	}
}

// Status is the /statusz snapshot.
type Status struct {
	Name     string             `json:"name"`
	Version  string             `json:"version"`
	Tools    []server.ToolStats `json:"tools"`
	Datasets []DatasetState     `json:"datasets"`
}

// DatasetState is the JSON form of [mtg.DatasetStatus].
type DatasetState struct {
	Name      string `json:"name"`
	Populated bool   `json:"populated"`
	Error     string `json:"error,omitempty"`
}

func (a *App) status(context.Context) any {
	st := Status{Name: Name, Version: a.version, Tools: a.server.Stats()}
	for _, d := range a.service.Datasets() {
		ds := DatasetState{Name: d.Name, Populated: d.Populated}
		if d.Err != nil {
			ds.Error = d.Err.Error()
		}
		st.Datasets = append(st.Datasets, ds)
	}
	return st
}
