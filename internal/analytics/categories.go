package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/terra-clan/moodle-analytics/internal/models"
	"github.com/terra-clan/moodle-analytics/internal/moodle"
)

// IndentMarker prefixes a category name once per depth level
const IndentMarker = "— "

// ResolveCategories returns every category keyed by id.
// Failures are logged and yield an empty map.
func (s *Service) ResolveCategories(ctx context.Context) map[int]models.Category {
	categories, err := s.fetchCategories(ctx)
	if err != nil {
		slog.Warn("failed to resolve categories", "error", err)
		return map[int]models.Category{}
	}
	return categories
}

func (s *Service) fetchCategories(ctx context.Context) (map[int]models.Category, error) {
	payload, err := moodle.Payload(s.caller.Call(ctx, moodle.FuncGetCategories, moodle.Params{
		"addsubcategories": 1,
	}))
	if err != nil {
		return nil, err
	}

	categories := make(map[int]models.Category)
	for _, c := range parseCategories(payload, 0) {
		if _, seen := categories[c.ID]; !seen {
			categories[c.ID] = c
		}
	}
	return categories, nil
}

// parseCategories reads a flat list, a {"categories": [...]} wrapper or a
// nested list where children hang off "categories" or "children".
// Entries without an id or a name are skipped.
func parseCategories(payload interface{}, parent int) []models.Category {
	var out []models.Category
	for _, item := range moodle.Items(payload, "categories") {
		m, ok := moodle.AsMap(item)
		if !ok {
			continue
		}

		id, _ := moodle.IntField(m, "id")
		name := moodle.StringField(m, "name")
		if id <= 0 || name == "" {
			continue
		}

		c := models.Category{ID: id, Name: name, ParentID: parent}
		if p, ok := moodle.IntField(m, "parent"); ok {
			c.ParentID = p
		}
		c.CourseCount, _ = moodle.IntField(m, "coursecount")
		out = append(out, c)

		for _, key := range []string{"categories", "children"} {
			if nested, ok := m[key].([]interface{}); ok {
				out = append(out, parseCategories(nested, id)...)
			}
		}
	}
	return out
}

// Categories returns the category hierarchy flattened with depth annotations,
// sorted by display name.
func (s *Service) Categories(ctx context.Context) ([]models.CategoryEntry, error) {
	tree := s.FetchCategoryTree(ctx)
	entries, truncated := tree.Flatten(s.cfg.MaxCategoryDepth)
	if truncated {
		slog.Warn("category hierarchy truncated", "max_depth", s.cfg.MaxCategoryDepth)
	}
	SortEntries(entries)
	return entries, nil
}

// FetchCategoryTree walks the hierarchy one parent at a time starting at the
// root. Failed levels are logged and left empty.
func (s *Service) FetchCategoryTree(ctx context.Context) *CategoryTree {
	tree := NewCategoryTree()
	s.fetchChildren(ctx, tree, 0, 0)
	return tree
}

func (s *Service) fetchChildren(ctx context.Context, tree *CategoryTree, parent, depth int) {
	if depth >= s.cfg.MaxCategoryDepth {
		slog.Warn("category traversal reached max depth", "parent", parent, "max_depth", s.cfg.MaxCategoryDepth)
		return
	}
	if ctx.Err() != nil {
		return
	}

	payload, err := moodle.Payload(s.caller.Call(ctx, moodle.FuncGetCategories, moodle.Params{
		"criteria":         moodle.Criteria("parent", parent),
		"addsubcategories": 0,
	}))
	if err != nil {
		slog.Warn("failed to fetch child categories", "parent", parent, "error", err)
		return
	}

	for _, c := range parseCategories(payload, parent) {
		if c.ParentID != parent {
			continue
		}
		if !tree.Add(c) {
			continue
		}
		s.fetchChildren(ctx, tree, c.ID, depth+1)
	}
}

// CategoryTree is a category hierarchy keyed by id
type CategoryTree struct {
	nodes map[int]*categoryNode
	roots []int
}

type categoryNode struct {
	category models.Category
	children []int
}

// NewCategoryTree creates an empty tree
func NewCategoryTree() *CategoryTree {
	return &CategoryTree{nodes: make(map[int]*categoryNode)}
}

// BuildCategoryTree links a flat category list into a tree.
// Categories whose parent is unknown become roots.
func BuildCategoryTree(categories []models.Category) *CategoryTree {
	tree := NewCategoryTree()
	for _, c := range categories {
		if _, exists := tree.nodes[c.ID]; !exists {
			tree.nodes[c.ID] = &categoryNode{category: c}
		}
	}
	linked := make(map[int]bool, len(categories))
	for _, c := range categories {
		if linked[c.ID] {
			continue
		}
		linked[c.ID] = true
		if parent, ok := tree.nodes[c.ParentID]; ok && c.ParentID != c.ID {
			parent.children = append(parent.children, c.ID)
		} else {
			tree.roots = append(tree.roots, c.ID)
		}
	}
	return tree
}

// Add inserts c under its parent, or as a root when the parent is unknown.
// It returns false if the id is already present.
func (t *CategoryTree) Add(c models.Category) bool {
	if _, exists := t.nodes[c.ID]; exists {
		return false
	}
	t.nodes[c.ID] = &categoryNode{category: c}
	if parent, ok := t.nodes[c.ParentID]; ok {
		parent.children = append(parent.children, c.ID)
	} else {
		t.roots = append(t.roots, c.ID)
	}
	return true
}

// Len returns the number of categories in the tree
func (t *CategoryTree) Len() int {
	return len(t.nodes)
}

// Flatten walks the tree depth first in insertion order. Nodes deeper than
// maxDepth are dropped and reported through the truncated flag.
func (t *CategoryTree) Flatten(maxDepth int) (entries []models.CategoryEntry, truncated bool) {
	entries = make([]models.CategoryEntry, 0, len(t.nodes))
	visited := make(map[int]bool, len(t.nodes))

	var walk func(id, depth int)
	walk = func(id, depth int) {
		if visited[id] {
			return
		}
		if depth >= maxDepth {
			truncated = true
			return
		}
		visited[id] = true

		node := t.nodes[id]
		entries = append(entries, models.CategoryEntry{
			ID:          node.category.ID,
			Name:        strings.Repeat(IndentMarker, depth) + node.category.Name,
			RawName:     node.category.Name,
			ParentID:    node.category.ParentID,
			Depth:       depth,
			CourseCount: node.category.CourseCount,
		})
		for _, child := range node.children {
			walk(child, depth+1)
		}
	}

	for _, root := range t.roots {
		walk(root, 0)
	}
	return entries, truncated
}

// SortEntries orders entries by their indented display name
func SortEntries(entries []models.CategoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}

// categoryLookup memoizes live single-category lookups for one enrichment run
type categoryLookup struct {
	service *Service
	mu      sync.Mutex
	names   map[int]string
}

func newCategoryLookup(s *Service) *categoryLookup {
	return &categoryLookup{service: s, names: make(map[int]string)}
}

func (l *categoryLookup) name(ctx context.Context, id int) string {
	l.mu.Lock()
	name, ok := l.names[id]
	l.mu.Unlock()
	if ok {
		return name
	}

	name = l.service.lookupCategoryName(ctx, id)

	l.mu.Lock()
	l.names[id] = name
	l.mu.Unlock()
	return name
}

func (s *Service) lookupCategoryName(ctx context.Context, id int) string {
	payload, err := moodle.Payload(s.caller.Call(ctx, moodle.FuncGetCategories, moodle.Params{
		"criteria":         moodle.Criteria("id", id),
		"addsubcategories": 0,
	}))
	if err != nil {
		slog.Debug("category lookup failed", "category", id, "error", err)
		return ""
	}

	categories := parseCategories(payload, 0)
	for _, c := range categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}
