// SPDX-FileCopyrightText: 2024 Smile SA
// SPDX-License-Identifier: Apache-2.0

package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sapcc/go-bits/assert"
	"github.com/sapcc/go-bits/must"
)

func TestQueryVector(t *testing.T) {
	var lastQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		must.SucceedT(t, r.ParseForm())
		lastQuery = r.Form.Get("query")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[` + //nolint:errcheck
			`{"metric":{"namespace":"default"},"value":[1704067200,"0.5"]}]}}`))
	}))
	defer srv.Close()

	c := must.ReturnT(NewClient(srv.URL, WithTimeout(5*time.Second)))(t)
	samples, err := c.Query(context.Background(), "(ceil(sum(x)/1)*0.5)", time.Unix(1704067200, 0))
	must.SucceedT(t, err)
	assert.DeepEqual(t, "query", lastQuery, "(ceil(sum(x)/1)*0.5)")
	assert.DeepEqual(t, "samples", samples, []Sample{{
		Labels:    map[string]string{"namespace": "default"},
		Value:     0.5,
		Timestamp: time.Unix(1704067200, 0).UTC(),
	}})
}

func TestQueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","errorType":"bad_data","error":"parse error"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := must.ReturnT(NewClient(srv.URL))(t)
	_, err := c.Query(context.Background(), "sum(", time.Unix(1704067200, 0))
	if err == nil {
		t.Fatal("expected query to fail")
	}
}
