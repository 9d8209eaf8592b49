package api

import (
	"net/http"
	"strconv"

	"orderhub/domain"
)

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cats))
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in domain.Category
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	cat, err := h.store.CreateCategory(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cat, err := h.store.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in domain.Category
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.ID = id
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	cat, err := h.store.UpdateCategory(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listMenuItems handles GET /api/menu-items?category=&available=.
func (h *Handler) listMenuItems(w http.ResponseWriter, r *http.Request) {
	var f domain.MenuItemFilter
	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := parseID("category", raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		f.CategoryID = id
	}
	available, err := queryBool(r, "available")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f.AvailableOnly = available != nil && *available

	items, err := h.store.ListMenuItems(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	var in domain.MenuItem
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.store.CreateMenuItem(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) getMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in domain.MenuItem
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.ID = id
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.store.UpdateMenuItem(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteMenuItem(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tables))
}

func (h *Handler) createTable(w http.ResponseWriter, r *http.Request) {
	var in domain.Table
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.store.CreateTable(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) getTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) updateTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var in domain.Table
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.ID = id
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.store.UpdateTable(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) deleteTable(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.store.DeleteTable(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleOccupation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.store.ToggleOccupation(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          t.ID,
		"is_occupied": t.IsOccupied,
		"message":     "Table " + strconv.Itoa(t.TableNumber) + " is now " + occupancy(t.IsOccupied),
	})
}

func occupancy(occupied bool) string {
	if occupied {
		return "occupied"
	}
	return "available"
}

// listBrokenItems handles GET /api/broken-items?resolved=.
func (h *Handler) listBrokenItems(w http.ResponseWriter, r *http.Request) {
	resolved, err := queryBool(r, "resolved")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.store.ListBrokenItems(r.Context(), resolved)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(items))
}

func (h *Handler) createBrokenItem(w http.ResponseWriter, r *http.Request) {
	var in domain.BrokenItem
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(in); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.store.CreateBrokenItem(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) resolveBrokenItem(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.store.ResolveBrokenItem(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
