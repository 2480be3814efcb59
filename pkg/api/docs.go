// Swagger document for the routes registered in server.go, in the layout
// swag init emits.

package api

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get the health status of the API",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/tables": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "List every decoded table",
                "produces": ["application/json"],
                "tags": ["tables"],
                "summary": "List tables",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/tables/{name}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get the header, schema and sections of a table",
                "produces": ["application/json"],
                "tags": ["tables"],
                "summary": "Describe a table",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/tables/{name}/records": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Page through a table by identifier, or find records by field value. With field and value the match is exact; with field, min and max it is inclusive.",
                "produces": ["application/json"],
                "tags": ["tables"],
                "summary": "List records",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "name", "in": "path", "required": true},
                    {"type": "string", "description": "Field to search", "name": "field", "in": "query"},
                    {"type": "string", "description": "Exact field value", "name": "value", "in": "query"},
                    {"type": "string", "description": "Lowest field value", "name": "min", "in": "query"},
                    {"type": "string", "description": "Highest field value", "name": "max", "in": "query"},
                    {"type": "integer", "description": "Return identifiers after this one", "name": "after", "in": "query"},
                    {"type": "integer", "description": "Maximum records returned (default 100, max 1000)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/tables/{name}/related/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get the records whose relation field references a foreign identifier",
                "produces": ["application/json"],
                "tags": ["tables"],
                "summary": "Get related records",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Foreign identifier", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/tables/{name}/records/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get one record of a table by identifier",
                "produces": ["application/json"],
                "tags": ["tables"],
                "summary": "Get a record",
                "parameters": [
                    {"type": "string", "description": "Table name", "name": "name", "in": "path", "required": true},
                    {"type": "integer", "description": "Record identifier", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.APIResponse": {
            "type": "object",
            "properties": {
                "data": {},
                "error": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "X-API-Key", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "db2kit REST API",
	Description:      "Read-only access to decoded WDC3/WDC4 client database tables.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
