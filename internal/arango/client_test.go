package arango

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/docgraph/internal/dberr"
	"github.com/dusk-indust/docgraph/internal/graph"
)

// jsonHandler checks the request line and writes status with body encoded
// as JSON.
func jsonHandler(t *testing.T, method, path string, status int, body any, inspect func(r *http.Request)) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, method, r.Method)
		assert.Equal(t, path, r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

func TestCursor_HappyPath(t *testing.T) {
	count, full := 3, 10
	ts := httptest.NewServer(jsonHandler(t, http.MethodPost, "/_db/got/_api/cursor", http.StatusCreated,
		graph.CursorResponse{
			Result:  []json.RawMessage{json.RawMessage(`{"_id":"Character/ned"}`)},
			HasMore: true,
			ID:      "1234",
			Count:   &count,
			Extra:   &graph.CursorExtra{Stats: graph.CursorStats{FullCount: &full}},
		},
		func(r *http.Request) {
			user, pwd, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "test", user)
			assert.Equal(t, "secret", pwd)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "FOR doc0 IN Character FILTER doc0.name == @var0 RETURN doc0", body["query"])
			assert.Equal(t, map[string]any{"var0": "Ned"}, body["bindVars"])
			assert.Equal(t, 1.0, body["batchSize"])
			assert.Equal(t, true, body["count"])
			assert.Equal(t, map[string]any{"fullCount": true}, body["options"])
			assert.NotContains(t, body, "Source")
		}))
	defer ts.Close()

	c := New(ts.URL+"/", "got", WithBasicAuth("test", "secret"))
	resp, err := c.Cursor(context.Background(), graph.CursorRequest{
		Query:     "FOR doc0 IN Character FILTER doc0.name == @var0 RETURN doc0",
		BindVars:  map[string]any{"var0": "Ned"},
		BatchSize: 1,
		Count:     true,
		Options:   &graph.CursorOptions{FullCount: true},
	})
	require.NoError(t, err)
	assert.True(t, resp.HasMore)
	assert.Equal(t, "1234", resp.ID)
	require.Len(t, resp.Result, 1)
	assert.JSONEq(t, `{"_id":"Character/ned"}`, string(resp.Result[0]))
	assert.Equal(t, 3, *resp.Count)
	fc, ok := resp.FullCount()
	assert.True(t, ok)
	assert.Equal(t, 10, fc)
}

func TestReadCursor_UsesPut(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.MethodPut, "/_db/got/_api/cursor/1234", http.StatusOK,
		graph.CursorResponse{Result: []json.RawMessage{json.RawMessage(`{}`)}, ID: "1234"}, nil))
	defer ts.Close()

	resp, err := New(ts.URL, "got").ReadCursor(context.Background(), "1234")
	require.NoError(t, err)
	assert.False(t, resp.HasMore)
	assert.Len(t, resp.Result, 1)
}

func TestDeleteCursor(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.MethodDelete, "/_db/got/_api/cursor/1234", http.StatusAccepted,
		map[string]any{"id": "1234", "error": false, "code": 202}, nil))
	defer ts.Close()

	require.NoError(t, New(ts.URL, "got").DeleteCursor(context.Background(), "1234"))
}

func TestBearerToken_TakesPrecedence(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.MethodGet, "/_db/got/_api/collection/Character/count", http.StatusOK,
		map[string]any{"name": "Character", "type": 2, "count": 12},
		func(r *http.Request) {
			assert.Equal(t, "bearer jwt-token", r.Header.Get("Authorization"))
		}))
	defer ts.Close()

	c := New(ts.URL, "got", WithBasicAuth("u", "p"), WithBearerToken("jwt-token"))
	info, err := c.Collection(context.Background(), "Character")
	require.NoError(t, err)
	assert.Equal(t, "Character", info.Name)
	assert.Equal(t, graph.CollectionDocument, info.Type)
	assert.Equal(t, 12, info.Count)
}

func TestInsertDocument(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.MethodPost, "/_db/got/_api/document/ChildOf", http.StatusAccepted,
		graph.DocumentMeta{Key: "1", ID: "ChildOf/1", Rev: "_abc"},
		func(r *http.Request) {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Character/robb", body["_from"])
		}))
	defer ts.Close()

	meta, err := New(ts.URL, "got").InsertDocument(context.Background(), "ChildOf",
		map[string]string{"_from": "Character/robb", "_to": "Character/ned"})
	require.NoError(t, err)
	assert.Equal(t, "ChildOf/1", meta.ID)
}

func TestServerError_Envelope(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.MethodPost, "/_db/got/_api/cursor", http.StatusNotFound,
		graph.ErrorResponse{Error: true, Code: 404, ErrorNum: 1203, ErrorMessage: "collection or view not found: Nope"}, nil))
	defer ts.Close()

	_, err := New(ts.URL, "got").Cursor(context.Background(), graph.CursorRequest{Query: "FOR d IN Nope RETURN d"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrServer)

	var se *dberr.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "create cursor", se.Op)
	assert.Equal(t, 404, se.Code)
	assert.Equal(t, 1203, se.ErrorNum)
	assert.Contains(t, se.Message, "Nope")
}

func TestServerError_PlainBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL, "got").ReadCursor(context.Background(), "1")
	var se *dberr.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "upstream exploded", se.Message)
}

func TestServerError_EnvelopeWith200(t *testing.T) {
	ts := httptest.NewServer(jsonHandler(t, http.MethodPut, "/_db/got/_api/cursor/9", http.StatusOK,
		graph.ErrorResponse{Error: true, Code: 400, ErrorNum: 1501, ErrorMessage: "syntax error"}, nil))
	defer ts.Close()

	_, err := New(ts.URL, "got").ReadCursor(context.Background(), "9")
	var se *dberr.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.Code)
	assert.Equal(t, 1501, se.ErrorNum)
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := New(url, "got").Cursor(context.Background(), graph.CursorRequest{Query: "RETURN 1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dberr.ErrTransport)

	var te *dberr.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "create cursor", te.Op)
}

func TestTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	c := New(ts.URL, "got", WithTimeout(50*time.Millisecond))
	_, err := c.ReadCursor(context.Background(), "1")
	assert.ErrorIs(t, err, dberr.ErrTransport)
}

func TestMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result": "not-a-list"`))
	}))
	defer ts.Close()

	_, err := New(ts.URL, "got").Cursor(context.Background(), graph.CursorRequest{Query: "RETURN 1"})
	assert.ErrorIs(t, err, dberr.ErrTransport)
}

func TestWithHTTPClient(t *testing.T) {
	hc := &http.Client{}
	c := New("http://localhost:8529", "got", WithHTTPClient(hc))
	assert.Same(t, hc, c.http)
	assert.Equal(t, "aql", c.Dialect().Name())
	assert.NoError(t, c.Close())
}
