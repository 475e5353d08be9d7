package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ryanpbrewster/ezdb/tokens"
)

// addressFromPath validates the {project} and {database} path parameters
// against the identifier grammar before the router is ever consulted.
func addressFromPath(w http.ResponseWriter, r *http.Request) (tokens.DatabaseAddress, bool) {
	address, err := tokens.NewDatabaseAddress(chi.URLParam(r, "project"), chi.URLParam(r, "database"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return tokens.DatabaseAddress{}, false
	}

	return address, true
}

// readRawSQL reads the request body as opaque SQL text, per the "raw"
// endpoints' text/plain contract.
func readRawSQL(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "can't read request body")
		return "", false
	}

	return string(body), true
}

// readParams decodes the {param: value} JSON body a named-SQL invocation
// carries. An empty body is treated as no parameters.
func readParams(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	if r.ContentLength == 0 {
		return map[string]interface{}{}, true
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	params := map[string]interface{}{}
	if err := dec.Decode(&params); err != nil {
		if err == io.EOF {
			return map[string]interface{}{}, true
		}
		writeBadRequest(w, "malformed JSON parameters")
		return nil, false
	}

	return params, true
}

// maxBodyBytes bounds every request body this surface reads in full before
// handing it to the core; the embedded engine, not this layer, enforces any
// further limit on the SQL or parameter values themselves.
const maxBodyBytes = 8 << 20 // 8 MiB
