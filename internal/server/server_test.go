package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taridex/declaration-processor/internal/model"
	"github.com/taridex/declaration-processor/internal/rates"
	"github.com/taridex/declaration-processor/internal/server"
	"github.com/taridex/declaration-processor/internal/store"
)

func newTestServer() *server.Server {
	config := &server.Config{
		Address: ":8080",
		Debug:   true,
	}
	source := rates.Static{
		"20.01.2024": {
			"CNY": dec.RequireFromString("12.5"),
			"USD": dec.RequireFromString("90"),
		},
	}
	return server.NewServer(config, store.NewMemory(), source, nil)
}

func doJSON(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func createDeclaration(t *testing.T, srv *server.Server) model.Declaration {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/v1/declarations", server.CreateDeclarationRequest{
		Name: "поставка январь",
		Date: "2024-01-20",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var decl model.Declaration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decl))
	require.NotEmpty(t, decl.ID)
	return decl
}

func uploadDocument(t *testing.T, srv *server.Server, declID, typeKey string, payload map[string]any) {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/declarations/%s/documents", declID),
		server.UploadDocumentRequest{TypeKey: typeKey, Payload: payload})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func invoicePayload() map[string]any {
	return map[string]any{
		"Общая информация": map[string]any{"Валюта": "CNY"},
		"Отправитель":      map[string]any{"Название компании": "NINGBO TOOLS CO., LTD", "Страна": "Китай"},
		"Получатель":       map[string]any{"Страна": "Россия"},
		"Товары": []any{
			map[string]any{
				"Код ТН ВЭД":   "8467210000",
				"Наименование": "Дрель аккумуляторная",
				"Количество":   "100",
				"Цена":         "25",
				"Стоимость":    "2500",
			},
		},
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	require.NoError(t, err)

	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
}

func TestDeclarationLifecycle(t *testing.T) {
	srv := newTestServer()
	decl := createDeclaration(t, srv)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/declarations", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var list []model.Declaration
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, decl.ID, list[0].ID)

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/declarations/"+decl.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/declarations/"+decl.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadDocumentRejectsUnknownType(t *testing.T) {
	srv := newTestServer()
	decl := createDeclaration(t, srv)

	w := doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/declarations/%s/documents", decl.ID),
		server.UploadDocumentRequest{TypeKey: "passport", Payload: map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReadFieldsRecomputes(t *testing.T) {
	srv := newTestServer()
	decl := createDeclaration(t, srv)
	uploadDocument(t, srv, decl.ID, "invoice", invoicePayload())

	w := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/declarations/%s/fields", decl.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp server.FieldsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-01-20", resp.Fields["declaration_date"])
	assert.Equal(t, "declaration_"+decl.ID, resp.Fields["document_id"])
	assert.Equal(t, "CNY", resp.Fields["g22_1"])
	assert.Equal(t, "12.5", resp.Fields["g23_1"])
	assert.Empty(t, resp.OverrideKeys)

	// A later upload changes the next read without any invalidation step.
	uploadDocument(t, srv, decl.ID, "packing", map[string]any{
		"Товары": []any{map[string]any{
			"Наименование":    "Дрель аккумуляторная",
			"Вес брутто":      "520.5",
			"Количество мест": "10",
		}},
	})
	w = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/v1/declarations/%s/fields", decl.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "10", resp.Fields["g6_1"])
}

func TestApplyFieldsPersistsAndPrunes(t *testing.T) {
	srv := newTestServer()
	decl := createDeclaration(t, srv)
	uploadDocument(t, srv, decl.ID, "invoice", invoicePayload())

	w := doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/declarations/%s/fields", decl.ID),
		server.ApplyFieldsRequest{Changes: map[string]any{
			"g22_1": "CNY", // equals the computed default, must not stick
			"g23_1": "13",
		}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp server.FieldsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "13", resp.Fields["g23_1"])
	assert.Equal(t, []string{"g23_1"}, resp.OverrideKeys)

	// Clearing the override restores the feed rate.
	w = doJSON(t, srv, http.MethodPost,
		fmt.Sprintf("/api/v1/declarations/%s/fields", decl.ID),
		server.ApplyFieldsRequest{Changes: map[string]any{"g23_1": ""}})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "12.5", resp.Fields["g23_1"])
	assert.Empty(t, resp.OverrideKeys)
}

func TestExportXML(t *testing.T) {
	srv := newTestServer()
	decl := createDeclaration(t, srv)
	uploadDocument(t, srv, decl.ID, "invoice", invoicePayload())

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/declarations/%s/xml", decl.ID), nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Body.String(), "<ESADout_CU>")
	assert.Contains(t, w.Body.String(), "8467210000")
}

func TestExportXMLWithoutGoodsFails(t *testing.T) {
	srv := newTestServer()
	decl := createDeclaration(t, srv)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/declarations/%s/xml", decl.ID), nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
