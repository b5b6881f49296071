// Package openapi produces the OpenAPI 3.0 document for the gantry API by
// reflecting over the handler's response types.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// =============================================================================
// Generator
// =============================================================================

// Resource describes one API collection for spec generation.
type Resource struct {
	Name    string   // collection name, e.g. "builds"
	Model   any      // response struct reflected into the schema
	List    bool     // GET /{name}
	Get     bool     // GET /{name}/{id}
	Create  bool     // POST /{name}
	Actions []string // POST /{name}/{id}/{action}
}

// Generator builds an OpenAPI 3.0 document from registered resources. The
// document is generated once and cached; registration invalidates the cache.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string

	mu        sync.Mutex
	resources []Resource
	cached    *openapi3.T
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) { g.title = title }
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) { g.version = version }
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) { g.servers = append(g.servers, url) }
}

// NewGenerator creates a generator with gantry defaults.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "Gantry API",
		version:     "1.0.0",
		description: "Container packaging and launch service for WSGI applications",
		servers:     []string{"http://localhost:10900"},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a resource to the generated document.
func (g *Generator) Register(res Resource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, res)
	g.cached = nil
}

// Generate returns the complete OpenAPI document.
func (g *Generator) Generate() *openapi3.T {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cached != nil {
		return g.cached
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}
	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
				},
				"code": &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
				},
			},
		},
	}

	for _, res := range g.resources {
		g.addResource(spec, res)
	}

	g.cached = spec
	return spec
}

// Handler serves the generated document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(g.Generate()); err != nil {
			http.Error(w, "failed to encode OpenAPI document", http.StatusInternalServerError)
		}
	}
}

// =============================================================================
// Path Generation
// =============================================================================

func (g *Generator) addResource(spec *openapi3.T, res Resource) {
	basePath := "/api/v1/" + res.Name
	schemaName := capitalize(singularize(res.Name))
	spec.Components.Schemas[schemaName] = extractSchema(res.Model)

	collection := &openapi3.PathItem{}
	if res.List {
		collection.Get = &openapi3.Operation{
			OperationID: "list" + capitalize(res.Name),
			Summary:     "List " + res.Name,
			Tags:        []string{capitalize(res.Name)},
			Parameters: openapi3.Parameters{
				queryParam("limit", "integer"),
				queryParam("offset", "integer"),
				queryParam("status", "string"),
			},
			Responses: jsonResponses(schemaName, http.StatusOK),
		}
	}
	if res.Create {
		collection.Post = &openapi3.Operation{
			OperationID: "create" + schemaName,
			Summary:     "Create a " + singularize(res.Name),
			Tags:        []string{capitalize(res.Name)},
			Responses:   jsonResponses(schemaName, http.StatusAccepted),
		}
	}
	spec.Paths.Set(basePath, collection)

	item := &openapi3.PathItem{
		Parameters: openapi3.Parameters{idParam()},
	}
	if res.Get {
		item.Get = &openapi3.Operation{
			OperationID: "get" + schemaName,
			Summary:     "Get a " + singularize(res.Name),
			Tags:        []string{capitalize(res.Name)},
			Responses:   jsonResponses(schemaName, http.StatusOK),
		}
	}
	spec.Paths.Set(basePath+"/{id}", item)

	for _, action := range res.Actions {
		spec.Paths.Set(basePath+"/{id}/"+action, &openapi3.PathItem{
			Parameters: openapi3.Parameters{idParam()},
			Post: &openapi3.Operation{
				OperationID: action + schemaName,
				Summary:     capitalize(action) + " a " + singularize(res.Name),
				Tags:        []string{capitalize(res.Name)},
				Responses:   jsonResponses(schemaName, http.StatusOK),
			},
		})
	}
}

func idParam() *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:     "id",
			In:       "path",
			Required: true,
			Schema: &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}},
			},
		},
	}
}

func queryParam(name, typ string) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name: name,
			In:   "query",
			Schema: &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{typ}},
			},
		},
	}
}

func jsonResponses(schemaName string, status int) *openapi3.Responses {
	responses := &openapi3.Responses{}
	desc := http.StatusText(status)
	responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content: openapi3.Content{
				"application/json": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/" + schemaName},
				},
			},
		},
	})
	return responses
}

// =============================================================================
// Schema Reflection
// =============================================================================

// extractSchema converts a response struct into an OpenAPI object schema
// keyed by json tags.
func extractSchema(model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}
		name := field.Name
		if jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				name = parts[0]
			}
		}
		if prop := goTypeToSchema(field.Type); prop != nil {
			schema.Properties[name] = prop
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

func goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}
	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}
	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: goTypeToSchema(t.Elem()),
			},
		}
	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: goTypeToSchema(t.Elem())},
			},
		}
	case reflect.Ptr:
		schema := goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return extractSchema(reflect.New(t).Interface())
	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Helpers
// =============================================================================

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func singularize(s string) string {
	if strings.HasSuffix(s, "es") && !strings.HasSuffix(s, "ses") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}
