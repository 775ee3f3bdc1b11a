package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"provenance/internal/registry/handler"
	"provenance/internal/registry/service"
	"provenance/internal/registry/store/memory"
	id "provenance/pkg/domain"
	"provenance/pkg/testutil"
)

const (
	tokenAlice = "token-alice"
	tokenBob   = "token-bob"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	backend := memory.New()
	stores := service.Stores{
		Products: backend,
		Trails:   backend,
		Owners:   backend,
		Tx:       backend,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := service.NewRegistryService(stores, service.WithLogger(logger))
	queries := service.NewQueryService(stores, service.WithLogger(logger))

	validator := testutil.StaticValidator{
		tokenAlice: id.Identity("0xalice"),
		tokenBob:   id.Identity("0xbob"),
	}

	s.router = chi.NewRouter()
	handler.New(registry, queries, logger, validator).Register(s.router)
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.T().Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) createProduct(token, name, origin string) uint64 {
	s.T().Helper()

	w := s.do(http.MethodPost, "/products", token, handler.CreateProductRequest{Name: name, Origin: origin})
	s.Require().Equal(http.StatusCreated, w.Code)

	var resp handler.CreateProductResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func (s *HandlerSuite) errorCode(w *httptest.ResponseRecorder) string {
	s.T().Helper()

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error"].(string)
	return code
}

func (s *HandlerSuite) TestCreateProduct() {
	w := s.do(http.MethodPost, "/products", tokenAlice, handler.CreateProductRequest{Name: "amulet", Origin: "workshop"})
	s.Equal(http.StatusCreated, w.Code)

	var resp handler.CreateProductResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(uint64(1), resp.ID)

	second := s.createProduct(tokenAlice, "deed", "registry")
	s.Equal(uint64(2), second)
}

func (s *HandlerSuite) TestCreateProductRequiresAuth() {
	w := s.do(http.MethodPost, "/products", "", handler.CreateProductRequest{Name: "amulet"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/products", "bogus-token", handler.CreateProductRequest{Name: "amulet"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestGetProduct() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodGet, fmt.Sprintf("/products/%d", productID), tokenAlice, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp handler.ProductResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(productID, resp.ID)
	s.Equal("amulet", resp.Name)
	s.Equal("workshop", resp.Origin)
	s.Equal("0xalice", resp.Owner)
}

func (s *HandlerSuite) TestGetProductUnknownID() {
	w := s.do(http.MethodGet, "/products/42", tokenAlice, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("invalid_product", s.errorCode(w))
}

func (s *HandlerSuite) TestGetProductMalformedID() {
	w := s.do(http.MethodGet, "/products/not-a-number", tokenAlice, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", s.errorCode(w))
}

func (s *HandlerSuite) TestTransferOwnership() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodPost, fmt.Sprintf("/products/%d/transfer", productID), tokenAlice,
		handler.TransferRequest{NewOwner: "0xbob"})
	s.Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/products/%d", productID), tokenAlice, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp handler.ProductResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("0xbob", resp.Owner)
}

func (s *HandlerSuite) TestTransferByNonOwnerForbidden() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodPost, fmt.Sprintf("/products/%d/transfer", productID), tokenBob,
		handler.TransferRequest{NewOwner: "0xbob"})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("unauthorized", s.errorCode(w))
}

func (s *HandlerSuite) TestTransferUnknownProduct() {
	w := s.do(http.MethodPost, "/products/42/transfer", tokenAlice,
		handler.TransferRequest{NewOwner: "0xbob"})
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("invalid_product", s.errorCode(w))
}

func (s *HandlerSuite) TestTransferToMalformedOwner() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodPost, fmt.Sprintf("/products/%d/transfer", productID), tokenAlice,
		handler.TransferRequest{NewOwner: "   "})
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("invalid_owner", s.errorCode(w))
}

func (s *HandlerSuite) TestGetMovements() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodPost, fmt.Sprintf("/products/%d/transfer", productID), tokenAlice,
		handler.TransferRequest{NewOwner: "0xbob"})
	s.Require().Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/products/%d/movements", productID), tokenAlice, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp handler.MovementsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("Created; Transferred", resp.Actions)
	s.Equal([]string{"0xalice", "0xbob"}, resp.Actors)
	s.Len(resp.Timestamps, 2)
}

func (s *HandlerSuite) TestGetMovementsPaged() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodPost, fmt.Sprintf("/products/%d/transfer", productID), tokenAlice,
		handler.TransferRequest{NewOwner: "0xbob"})
	s.Require().Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, fmt.Sprintf("/products/%d/movements?offset=1&limit=1", productID), tokenAlice, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp handler.MovementsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("Transferred", resp.Actions)
	s.Equal([]string{"0xbob"}, resp.Actors)
}

func (s *HandlerSuite) TestGetMovementsRejectsNegativePage() {
	productID := s.createProduct(tokenAlice, "amulet", "workshop")

	w := s.do(http.MethodGet, fmt.Sprintf("/products/%d/movements?offset=-1", productID), tokenAlice, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("bad_request", s.errorCode(w))
}

func (s *HandlerSuite) TestGetOwnedProducts() {
	first := s.createProduct(tokenAlice, "amulet", "workshop")
	s.createProduct(tokenBob, "deed", "registry")
	third := s.createProduct(tokenAlice, "crate", "dock")

	w := s.do(http.MethodGet, "/owners/0xalice/products", tokenAlice, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp handler.OwnedProductsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("0xalice", resp.Owner)
	s.Equal([]uint64{first, third}, resp.Products)
}

func (s *HandlerSuite) TestGetOwnedProductsUnknownOwnerEmpty() {
	w := s.do(http.MethodGet, "/owners/0xnobody/products", tokenAlice, nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp handler.OwnedProductsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Empty(resp.Products)
}

func (s *HandlerSuite) TestMalformedBodyRejected() {
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenAlice)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestNonJSONContentTypeRejected() {
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader([]byte("name=a")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+tokenAlice)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusUnsupportedMediaType, w.Code)
}

func (s *HandlerSuite) TestRequestIDHeaderSet() {
	w := s.do(http.MethodGet, "/products/1", tokenAlice, nil)
	s.NotEmpty(w.Header().Get("X-Request-ID"))
}
