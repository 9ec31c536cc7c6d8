package syncq

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/roach88/liftsync/internal/model"
)

// Routes maps each entity kind to its server collection path.
type Routes map[model.EntityKind]string

// DefaultRoutes returns the server paths for every known entity kind.
func DefaultRoutes() Routes {
	return Routes{
		model.EntitySession:         "/api/sessions",
		model.EntityPersonalRecord:  "/api/personal-records",
		model.EntityWeightEntry:     "/api/weight-entries",
		model.EntityExercise:        "/api/exercises",
		model.EntityPlan:            "/api/splits",
		model.EntityPlanDayExercise: "/api/split-day-exercises",
		model.EntityPlanDay:         "/api/split-days",
	}
}

// Resolve returns the verb and path for an operation on an entity.
// create posts to the collection; update and delete address the member.
func (r Routes) Resolve(op model.OperationKind, entity model.EntityKind, entityID string) (method, path string, err error) {
	base, ok := r[entity]
	if !ok {
		return "", "", fmt.Errorf("no route for entity kind %q", entity)
	}
	switch op {
	case model.OpCreate:
		return http.MethodPost, base, nil
	case model.OpUpdate:
		return http.MethodPut, base + "/" + url.PathEscape(entityID), nil
	case model.OpDelete:
		return http.MethodDelete, base + "/" + url.PathEscape(entityID), nil
	default:
		return "", "", fmt.Errorf("unknown operation %q", op)
	}
}
