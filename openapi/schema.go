package openapi

import (
	"reflect"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

var timeType = reflect.TypeOf(time.Time{})

// schemaOf derives an inline schema from the Go type of example using its
// json tags. Fields without omitempty are required; a doc tag becomes the
// description.
func schemaOf(example any) *openapi3.SchemaRef {
	if example == nil {
		return openapi3.NewObjectSchema().NewRef()
	}
	return schemaFor(reflect.TypeOf(example)).NewRef()
}

func schemaFor(t reflect.Type) *openapi3.Schema {
	if t.Kind() == reflect.Pointer {
		s := schemaFor(t.Elem())
		s.Nullable = true
		return s
	}
	if t == timeType {
		return openapi3.NewDateTimeSchema()
	}

	switch t.Kind() {
	case reflect.String:
		return openapi3.NewStringSchema()
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return openapi3.NewIntegerSchema()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema().WithMin(0)
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	case reflect.Slice, reflect.Array:
		return openapi3.NewArraySchema().WithItems(schemaFor(t.Elem()))
	case reflect.Map:
		return openapi3.NewObjectSchema().WithAdditionalProperties(schemaFor(t.Elem()))
	case reflect.Struct:
		return structSchema(t)
	default:
		return openapi3.NewObjectSchema()
	}
}

func structSchema(t reflect.Type) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		parts := strings.Split(tag, ",")
		name := field.Name
		if parts[0] != "" {
			name = parts[0]
		}

		prop := schemaFor(field.Type)
		if doc := field.Tag.Get("doc"); doc != "" {
			prop.Description = doc
		}
		if ex := field.Tag.Get("example"); ex != "" {
			prop.Example = ex
		}
		schema.WithProperty(name, prop)

		optional := false
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				optional = true
			}
		}
		if !optional {
			required = append(required, name)
		}
	}

	schema.Required = required
	return schema
}
