// Package docs holds the OpenAPI description served at /swagger.
package docs

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
        "/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/services.Profile"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/organizations": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["organizations"],
                "summary": "Organizations the caller belongs to",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["organizations"],
                "summary": "Create an organization owned by the caller",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateOrganizationRequest"}}],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/organizations/{id}/switch": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["organizations"],
                "summary": "Make an organization the caller's active one",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/common.ErrorResponse"}}
                }
            }
        },
        "/organizations/members": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["organizations"],
                "summary": "Members of the active organization",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["organizations"],
                "summary": "Add a user to the active organization",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/services.AddMemberRequest"}}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/organizations/members/{userId}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["organizations"],
                "summary": "Deactivate a member of the active organization",
                "parameters": [{"type": "string", "name": "userId", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}
            }
        },
        "/maintenance-requests/open": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["maintenance"],
                "summary": "Open maintenance requests, most urgent first",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/backups": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Backups, newest first",
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Take a manual backup",
                "responses": {"201": {"description": "Created"}, "503": {"description": "Service Unavailable"}}
            }
        },
        "/admin/backups/restore": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["admin"],
                "summary": "Stage a restore",
                "description": "The backup replaces the store on the next start.",
                "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.StageRestoreRequest"}}],
                "responses": {"202": {"description": "Accepted"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "definitions": {
        "common.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "details": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "handlers.CreateOrganizationRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "handlers.StageRestoreRequest": {
            "type": "object",
            "properties": {"name": {"type": "string"}}
        },
        "services.AddMemberRequest": {
            "type": "object",
            "properties": {"user_id": {"type": "string"}, "role": {"type": "string"}}
        },
        "services.Profile": {
            "type": "object",
            "properties": {
                "active_organization_id": {"type": "string"},
                "role": {"type": "string"},
                "user": {"type": "object"},
                "organizations": {"type": "array", "items": {"type": "object"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "propertyhub API",
	Description:      "Multi-tenant property management.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
