package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminkit/warden/pkg/groups"
	"github.com/adminkit/warden/pkg/store"
)

type fakeGroupService struct {
	input    groups.Input
	inputSet bool

	createErr error
	updateErr error
	deleteErr error
	detail    *store.GroupDetail
}

func (f *fakeGroupService) Create(ctx context.Context, input groups.Input) (int64, error) {
	f.input = input
	f.inputSet = true
	return 3, f.createErr
}

func (f *fakeGroupService) Update(ctx context.Context, groupID int64, input groups.Input) error {
	f.input = input
	f.inputSet = true
	return f.updateErr
}

func (f *fakeGroupService) Delete(ctx context.Context, groupID int64) error {
	return f.deleteErr
}

func (f *fakeGroupService) Get(ctx context.Context, groupID int64) (*store.GroupDetail, error) {
	if f.detail == nil {
		return nil, store.ErrNotFound
	}
	return f.detail, nil
}

func (f *fakeGroupService) List(ctx context.Context, filter store.GroupFilter) ([]store.Group, int, error) {
	return nil, 0, nil
}

func groupRouter(svc GroupService) *mux.Router {
	router := mux.NewRouter()
	(&GroupHandlers{groups: svc, log: testAPILogger()}).RegisterRoutes(router)
	return router
}

func doRequest(router *mux.Router, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateGroup_PreservesAssociationSets(t *testing.T) {
	svc := &fakeGroupService{}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{
		"name": "Editors",
		"users": [{"id": 1, "operation": "c"}],
		"resources": [{"id": 7, "operation": "c", "write": true, "update": false, "delete": false}]
	}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, svc.inputSet)
	require.Len(t, svc.input.Users, 1)
	assert.Equal(t, groups.OpCreate, svc.input.Users[0].Operation)
	require.Len(t, svc.input.Resources, 1)
	assert.True(t, svc.input.Resources[0].Write)
}

func TestCreateGroup_AbsentArraysStayNil(t *testing.T) {
	svc := &fakeGroupService{}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{"name": "Editors"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, svc.input.Users)
	assert.Nil(t, svc.input.Resources)
}

func TestCreateGroup_EmptyArraysStayNonNil(t *testing.T) {
	svc := &fakeGroupService{}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{"name": "Editors", "users": [], "resources": []}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, svc.input.Users)
	assert.NotNil(t, svc.input.Resources)
}

func TestCreateGroup_ValidatesName(t *testing.T) {
	svc := &fakeGroupService{}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{"name": "ab"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.inputSet)
}

func TestCreateGroup_RequiresFlagsOnGrantMutations(t *testing.T) {
	svc := &fakeGroupService{}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{
		"name": "Editors",
		"resources": [{"id": 7, "operation": "c"}]
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Permission flags are required")
}

func TestCreateGroup_RejectsUnknownOperation(t *testing.T) {
	svc := &fakeGroupService{}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{
		"name": "Editors",
		"users": [{"id": 1, "operation": "x"}]
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroup_NameConflict(t *testing.T) {
	svc := &fakeGroupService{createErr: store.ErrConflict}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPost, "/groups", `{"name": "Editors"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateGroup_NotFound(t *testing.T) {
	svc := &fakeGroupService{updateErr: store.ErrNotFound}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodPut, "/groups/99", `{"name": "Ghosts"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetGroup_Detail(t *testing.T) {
	svc := &fakeGroupService{detail: &store.GroupDetail{
		Group: store.Group{ID: 3, Name: "Editors"},
		Users: []store.GroupMember{{ID: 1, Name: "Alice", Email: "alice@example.com"}},
		Resources: []store.GroupGrant{
			{ResourceID: 7, ResourceName: "/reports", Write: true},
		},
	}}
	router := groupRouter(svc)

	rec := doRequest(router, http.MethodGet, "/groups/3", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/reports"`)
	assert.Contains(t, rec.Body.String(), `"Alice"`)
}

func TestDeleteGroup(t *testing.T) {
	router := groupRouter(&fakeGroupService{})

	rec := doRequest(router, http.MethodDelete, "/groups/3", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteGroup_NotFound(t *testing.T) {
	router := groupRouter(&fakeGroupService{deleteErr: store.ErrNotFound})

	rec := doRequest(router, http.MethodDelete, "/groups/99", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
