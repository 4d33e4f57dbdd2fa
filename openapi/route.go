package openapi

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

type Route struct {
	doc       *Document
	method    string
	path      string
	operation *openapi3.Operation
}

func (r *Route) Summary(summary string) *Route {
	r.operation.Summary = summary
	return r
}

func (r *Route) Description(description string) *Route {
	r.operation.Description = description
	return r
}

func (r *Route) Tags(tags ...string) *Route {
	r.operation.Tags = append(r.operation.Tags, tags...)
	return r
}

// Body documents a required JSON request body shaped like example.
func (r *Route) Body(example any, description string) *Route {
	r.operation.RequestBody = &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Description: description,
			Required:    true,
			Content:     openapi3.NewContentWithJSONSchemaRef(schemaOf(example)),
		},
	}
	return r
}

// HeaderParam documents an optional string request header.
func (r *Route) HeaderParam(name, description string) *Route {
	r.operation.Parameters = append(r.operation.Parameters, &openapi3.ParameterRef{
		Value: openapi3.NewHeaderParameter(name).
			WithDescription(description).
			WithSchema(openapi3.NewStringSchema()),
	})
	return r
}

// Response documents a status. A nil example means no body.
func (r *Route) Response(status int, example any, description string, headers ...string) *Route {
	resp := openapi3.NewResponse().WithDescription(description)
	if example != nil {
		resp.Content = openapi3.NewContentWithJSONSchemaRef(schemaOf(example))
	}
	if len(headers) > 0 {
		resp.Headers = make(openapi3.Headers, len(headers))
		for _, name := range headers {
			resp.Headers[name] = &openapi3.HeaderRef{
				Value: &openapi3.Header{Parameter: openapi3.Parameter{Schema: openapi3.NewStringSchema().NewRef()}},
			}
		}
	}
	r.operation.Responses.Set(strconv.Itoa(status), &openapi3.ResponseRef{Value: resp})
	return r
}

func (r *Route) Security(schemes ...string) *Route {
	reqs := openapi3.NewSecurityRequirements()
	for _, scheme := range schemes {
		reqs.With(openapi3.NewSecurityRequirement().Authenticate(scheme))
	}
	r.operation.Security = reqs
	return r
}

func (r *Route) Build() {
	r.doc.add(r.method, r.path, r.operation)
}
