package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/adminkit/warden/pkg/httputil"
	"github.com/adminkit/warden/pkg/store"
)

// ResourceHandlers serves the grantable resource catalog.
type ResourceHandlers struct {
	resources ResourceLister
	log       *logrus.Logger
}

// RegisterRoutes registers the resource routes.
func (h *ResourceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/resources", h.listResources).Methods("GET")
}

type resourceResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department,omitempty"`
}

// listResources handles GET /resources.
func (h *ResourceHandlers) listResources(w http.ResponseWriter, r *http.Request) {
	filter := store.ResourceFilter{
		Name:       r.URL.Query().Get("name"),
		Department: r.URL.Query().Get("department"),
	}

	resources, err := h.resources.ListResources(r.Context(), filter)
	if err != nil {
		h.log.WithError(err).Error("list resources failed")
		httputil.WriteInternalError(w, err)
		return
	}

	data := make([]resourceResponse, 0, len(resources))
	for _, res := range resources {
		data = append(data, resourceResponse{ID: res.ID, Name: res.Name, Department: res.Department})
	}
	httputil.WriteSuccess(w, listResponse{Data: data, Total: len(data)})
}
