package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diewo77/arte/internal/apperr"
	"github.com/diewo77/arte/internal/auth"
	"github.com/diewo77/arte/internal/gate"
	"github.com/diewo77/arte/internal/httpx"
	"github.com/diewo77/arte/internal/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Page is the list response envelope.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Resource serves policy-gated CRUD for one model. Every request is checked
// against the gate with the loaded instance; list queries are narrowed by
// Scope to what the actor may view. Hooks customise payload handling.
type Resource[T any] struct {
	Name    string
	DB      *gorm.DB
	Gate    *policy.Gate
	Preload []string
	Order   string

	// Scope restricts list queries to the rows the actor may view.
	Scope func(db *gorm.DB, a auth.Actor) *gorm.DB
	// Filter applies optional query string filters to list queries.
	Filter func(db *gorm.DB, q url.Values) *gorm.DB

	// Build decodes and validates a create payload. Nil disables POST.
	Build func(r *http.Request, a auth.Actor) (*T, error)
	// Apply decodes and validates an update payload onto item. Nil disables
	// PUT/PATCH.
	Apply func(r *http.Request, a auth.Actor, item *T) error
	// Hydrate loads the relations the policy needs on a built or modified
	// item before it is authorized.
	Hydrate func(ctx context.Context, db *gorm.DB, item *T) error

	// Columns are the only columns Update writes; updated_at is implied.
	Columns []string
	// Guard narrows the UPDATE to rows still in the state that was
	// authorized. A write that matches nothing is a conflict.
	Guard func(db *gorm.DB, item *T) *gorm.DB

	AfterCreate  func(ctx context.Context, tx *gorm.DB, a auth.Actor, item *T) error
	AfterUpdate  func(ctx context.Context, tx *gorm.DB, a auth.Actor, item *T) error
	BeforeDelete func(ctx context.Context, a auth.Actor, item *T) error
	AfterDelete  func(ctx context.Context, a auth.Actor, item *T)
}

func actorOf(r *http.Request) auth.Actor {
	a, _ := auth.ActorFromContext(r.Context())
	return a
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func pagination(q url.Values) (limit, offset int) {
	limit, _ = strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset, _ = strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (res *Resource[T]) preloaded(db *gorm.DB) *gorm.DB {
	for _, p := range res.Preload {
		db = db.Preload(p)
	}
	return db
}

// Load fetches the row id with its preloads, or a not-found error.
func (res *Resource[T]) Load(ctx context.Context, id uint) (*T, error) {
	item := new(T)
	if err := res.preloaded(res.DB.WithContext(ctx)).First(item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(res.Name)
		}
		return nil, err
	}
	return item, nil
}

// missing answers a request for an absent row. Actors who may not act on
// an arbitrary row get the denial an existing row would give them.
func (res *Resource[T]) missing(r *http.Request, action gate.Action) error {
	if err := res.Gate.Authorize(r.Context(), actorOf(r), action, res.Name, nil); err != nil {
		return err
	}
	return apperr.NotFound(res.Name)
}

// Find loads the {id} of the request and authorizes action on it.
func (res *Resource[T]) Find(r *http.Request, action gate.Action) (*T, error) {
	id, ok := pathID(r, "id")
	if !ok {
		return nil, res.missing(r, action)
	}
	item, err := res.Load(r.Context(), id)
	if apperr.IsNotFound(err) {
		return nil, res.missing(r, action)
	}
	if err != nil {
		return nil, err
	}
	if err := res.Gate.Authorize(r.Context(), actorOf(r), action, res.Name, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (res *Resource[T]) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := actorOf(r)
	if err := res.Gate.Authorize(ctx, a, gate.ActionViewAny, res.Name, nil); err != nil {
		httpx.Error(w, r, err)
		return
	}

	q := r.URL.Query()
	limit, offset := pagination(q)
	db := res.DB.WithContext(ctx).Model(new(T))
	if res.Scope != nil {
		db = res.Scope(db, a)
	}
	if res.Filter != nil {
		db = res.Filter(db, q)
	}
	db = db.Session(&gorm.Session{})

	page := Page[T]{Items: []T{}, Limit: limit, Offset: offset}
	if err := db.Count(&page.Total).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	order := res.Order
	if order == "" {
		order = "id DESC"
	}
	if err := res.preloaded(db).Order(order).Limit(limit).Offset(offset).Find(&page.Items).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (res *Resource[T]) Show(w http.ResponseWriter, r *http.Request) {
	item, err := res.Find(r, gate.ActionView)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

// Store creates a row: build, hydrate, authorize, insert and run
// AfterCreate in one transaction, then reply with the reloaded row.
func (res *Resource[T]) Store(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := actorOf(r)
	if res.Build == nil {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if a == (auth.Actor{}) {
		httpx.Error(w, r, gate.ErrUnauthenticated)
		return
	}
	item, err := res.Build(r, a)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := res.authorize(ctx, a, gate.ActionCreate, item); err != nil {
		httpx.Error(w, r, err)
		return
	}
	err = res.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(item).Error; err != nil {
			return err
		}
		if res.AfterCreate != nil {
			return res.AfterCreate(ctx, tx, a, item)
		}
		return nil
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res.reply(w, r, http.StatusCreated, item)
}

// Update authorizes the stored row, applies the payload, authorizes the
// result again and writes the editable columns back.
func (res *Resource[T]) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := actorOf(r)
	if res.Apply == nil {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	item, err := res.Find(r, gate.ActionUpdate)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := res.Apply(r, a, item); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := res.authorize(ctx, a, gate.ActionUpdate, item); err != nil {
		httpx.Error(w, r, err)
		return
	}
	err = res.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := res.write(tx, item); err != nil {
			return err
		}
		if res.AfterUpdate != nil {
			return res.AfterUpdate(ctx, tx, a, item)
		}
		return nil
	})
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	res.reply(w, r, http.StatusOK, item)
}

func (res *Resource[T]) Destroy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := actorOf(r)
	item, err := res.Find(r, gate.ActionDelete)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if res.BeforeDelete != nil {
		if err := res.BeforeDelete(ctx, a, item); err != nil {
			httpx.Error(w, r, err)
			return
		}
	}
	if err := res.DB.WithContext(ctx).Delete(item).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	if res.AfterDelete != nil {
		res.AfterDelete(ctx, a, item)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (res *Resource[T]) write(tx *gorm.DB, item *T) error {
	if len(res.Columns) == 0 {
		return tx.Omit(clause.Associations).Save(item).Error
	}
	q := tx.Model(item).Select(append([]string{"updated_at"}, res.Columns...))
	if res.Guard != nil {
		q = res.Guard(q, item)
	}
	result := q.Updates(item)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.Conflict("stale_" + res.Name)
	}
	return nil
}

func (res *Resource[T]) authorize(ctx context.Context, a auth.Actor, action gate.Action, item *T) error {
	if res.Hydrate != nil {
		if err := res.Hydrate(ctx, res.DB.WithContext(ctx), item); err != nil {
			return err
		}
	}
	return res.Gate.Authorize(ctx, a, action, res.Name, item)
}

// reply reloads item with its preloads so responses always carry the
// stored state.
func (res *Resource[T]) reply(w http.ResponseWriter, r *http.Request, status int, item *T) {
	if err := res.preloaded(res.DB.WithContext(r.Context())).First(item).Error; err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, status, item)
}
