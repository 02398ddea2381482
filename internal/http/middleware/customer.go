package middleware

import (
	"net/http"
	"strings"

	"github.com/arvhein/backend-merch/internal/common"
)

// CustomerHeader is the header the storefront uses to identify a customer.
// There are no accounts; the frontend mints a stable identifier per device.
const CustomerHeader = "X-Customer-Id"

// CustomerContext lifts the customer identifier from the request header into
// the context. Anonymous requests pass through untouched.
func CustomerContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(CustomerHeader))
		if id != "" {
			r = r.WithContext(common.WithCustomerID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCustomer rejects requests that did not identify a customer. Used on
// cart mutation and checkout routes.
func RequireCustomer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.CustomerID(r.Context()); !ok {
			common.JSONError(w, http.StatusBadRequest, "CUSTOMER_REQUIRED", "missing "+CustomerHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
