package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/sakif/comparathor/internal/apperror"
	"github.com/sakif/comparathor/internal/model"
	"github.com/sakif/comparathor/internal/repository"
)

// =========================================================================
// IN-MEMORY FAKE STORE
// =========================================================================
//
// fakeStore implements every repository interface with plain maps, the way
// sqlite.DB does with tables. It counts calls so tests can assert that a code
// path touched the store (reads) or changed it (writes).
//
// Set err to make every method fail, simulating a database outage.
type fakeStore struct {
	users       map[string]*model.User
	types       map[int64]*model.ProductType
	products    map[int64]*model.Product
	comparisons map[int64]*model.Comparison

	nextID int64
	reads  int
	writes int
	err    error
}

var (
	_ repository.UserRepository        = (*fakeStore)(nil)
	_ repository.ProductTypeRepository = (*fakeStore)(nil)
	_ repository.ProductRepository     = (*fakeStore)(nil)
	_ repository.ComparisonRepository  = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]*model.User{},
		types:       map[int64]*model.ProductType{},
		products:    map[int64]*model.Product{},
		comparisons: map[int64]*model.Comparison{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

// --- users ---

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	if f.err != nil {
		return f.err
	}
	if u.ID == "" {
		u.ID = "user-" + strconv.FormatInt(f.id(), 10)
	}
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) || existing.ID == u.ID {
			return apperror.ValidationFailed("email", "email or user id already registered")
		}
	}
	f.writes++
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) UpdateUser(_ context.Context, u *model.User) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	for _, existing := range f.users {
		if existing.ID != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return apperror.ValidationFailed("email", "email already registered")
		}
	}
	f.writes++
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) CountUsers(context.Context) (int, error) {
	f.reads++
	return len(f.users), f.err
}

// --- product types ---

func (f *fakeStore) CreateProductType(_ context.Context, pt *model.ProductType) error {
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.types {
		if existing.Name == pt.Name {
			return apperror.ValidationFailed("name", "product type already exists")
		}
	}
	if pt.ID == 0 {
		pt.ID = f.id()
	}
	f.writes++
	stored := *pt
	f.types[pt.ID] = &stored
	return nil
}

func (f *fakeStore) GetProductType(_ context.Context, id int64) (*model.ProductType, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	pt, ok := f.types[id]
	if !ok {
		return nil, apperror.NotFound("product type", strconv.FormatInt(id, 10))
	}
	out := *pt
	return &out, nil
}

func (f *fakeStore) GetProductTypeByName(_ context.Context, name string) (*model.ProductType, error) {
	f.reads++
	for _, pt := range f.types {
		if pt.Name == name {
			out := *pt
			return &out, nil
		}
	}
	return nil, apperror.NotFound("product type", name)
}

func (f *fakeStore) ListProductTypes(context.Context) ([]model.ProductType, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	out := []model.ProductType{}
	for _, pt := range f.types {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) DeleteProductType(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.types[id]; !ok {
		return apperror.NotFound("product type", strconv.FormatInt(id, 10))
	}
	for _, p := range f.products {
		if p.ProductTypeID == id {
			return apperror.Conflict("product type", strconv.FormatInt(id, 10))
		}
	}
	f.writes++
	delete(f.types, id)
	return nil
}

// --- products ---

func (f *fakeStore) CreateProduct(_ context.Context, p *model.Product) error {
	if f.err != nil {
		return f.err
	}
	if p.ID == 0 {
		p.ID = f.id()
	}
	f.writes++
	stored := *p
	f.products[p.ID] = &stored
	return nil
}

func (f *fakeStore) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	out := *p
	return &out, nil
}

func (f *fakeStore) ListProducts(_ context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	all := []model.Product{}
	for _, p := range f.products {
		if filter.ProductTypeID == 0 || p.ProductTypeID == filter.ProductTypeID {
			all = append(all, *p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, filter.ListOptions), nil
}

func (f *fakeStore) MissingProducts(_ context.Context, ids []int64) ([]int64, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	var missing []int64
	for _, id := range ids {
		if _, ok := f.products[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (f *fakeStore) UpdateProduct(_ context.Context, p *model.Product) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.products[p.ID]; !ok {
		return apperror.NotFound("product", strconv.FormatInt(p.ID, 10))
	}
	f.writes++
	stored := *p
	f.products[p.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteProduct(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.products[id]; !ok {
		return apperror.NotFound("product", strconv.FormatInt(id, 10))
	}
	for _, c := range f.comparisons {
		for _, link := range c.Products {
			if link.ProductID == id {
				return apperror.Conflict("product", strconv.FormatInt(id, 10))
			}
		}
	}
	f.writes++
	delete(f.products, id)
	return nil
}

// --- comparisons ---

func (f *fakeStore) CreateComparison(_ context.Context, c *model.Comparison, productIDs []int64) error {
	if f.err != nil {
		return f.err
	}
	for _, pid := range productIDs {
		if _, ok := f.products[pid]; !ok {
			return apperror.ValidationFailed("product_ids", "unknown product")
		}
	}
	c.ID = f.id()
	f.setLinks(c, productIDs)
	f.writes++
	stored := *c
	f.comparisons[c.ID] = &stored
	return nil
}

func (f *fakeStore) GetComparison(_ context.Context, id int64) (*model.Comparison, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.comparisons[id]
	if !ok {
		return nil, apperror.NotFound("comparison", strconv.FormatInt(id, 10))
	}
	out := *c
	return &out, nil
}

func (f *fakeStore) ListComparisons(_ context.Context, filter repository.ComparisonFilter) ([]model.Comparison, error) {
	f.reads++
	if f.err != nil {
		return nil, f.err
	}
	all := []model.Comparison{}
	for _, c := range f.comparisons {
		if filter.UserID == "" || c.OwnerID() == filter.UserID {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, filter.ListOptions), nil
}

func (f *fakeStore) UpdateComparison(_ context.Context, c *model.Comparison, productIDs []int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.comparisons[c.ID]; !ok {
		return apperror.NotFound("comparison", strconv.FormatInt(c.ID, 10))
	}
	if productIDs != nil {
		f.setLinks(c, productIDs)
	}
	f.writes++
	stored := *c
	f.comparisons[c.ID] = &stored
	return nil
}

func (f *fakeStore) DeleteComparison(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.comparisons[id]; !ok {
		return apperror.NotFound("comparison", strconv.FormatInt(id, 10))
	}
	f.writes++
	delete(f.comparisons, id)
	return nil
}

func (f *fakeStore) setLinks(c *model.Comparison, productIDs []int64) {
	c.Products = make([]model.ComparisonProduct, 0, len(productIDs))
	for _, pid := range productIDs {
		p := *f.products[pid]
		c.Products = append(c.Products, model.ComparisonProduct{
			ID:           f.id(),
			ComparisonID: c.ID,
			ProductID:    pid,
			Product:      &p,
		})
	}
}

func paginate[T any](all []T, opts repository.ListOptions) []T {
	if opts.Offset >= len(all) {
		return []T{}
	}
	all = all[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all
}

// --- fixtures ---

func (f *fakeStore) addUser(id, email string, role model.Role) *model.User {
	u := &model.User{ID: id, Email: email, Role: role}
	f.users[id] = u
	out := *u
	return &out
}

func (f *fakeStore) addType(name string, schema map[string]any) *model.ProductType {
	pt := &model.ProductType{ID: f.id(), Name: name, MetadataSchema: schema}
	f.types[pt.ID] = pt
	out := *pt
	return &out
}

func (f *fakeStore) addProduct(owner string, typeID int64, name string) *model.Product {
	p := &model.Product{ID: f.id(), UserID: owner, ProductTypeID: typeID, Name: name}
	f.products[p.ID] = p
	out := *p
	return &out
}
