package shared

import (
	"net/http"
	"strconv"

	"github.com/go-playground/form"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var Decoder = form.NewDecoder()

// ParseID extracts the numeric {id} route variable.
func ParseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ParseUUID extracts the {id} route variable as a uuid.
func ParseUUID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}
