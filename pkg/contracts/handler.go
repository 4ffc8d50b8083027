package contracts

import "github.com/julienschmidt/httprouter"

// Handler is implemented by every HTTP-facing domain handler so the
// application can mount routes without knowing the domain.
type Handler interface {
	RegisterRoutes(*httprouter.Router)
}
