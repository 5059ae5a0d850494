package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "IUFC Admission API",
        "description": "Continuing-education admissions, registrations and EPC hand-off",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Admissions", "description": "Admission files and their workflow"},
        {"name": "Files", "description": "Documents attached to admissions"},
        {"name": "Trainings", "description": "Continuing-education trainings and their managers"},
        {"name": "Prospects", "description": "Leads collected from the public form"},
        {"name": "Exports", "description": "Spreadsheet and PDF exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admissions": {
            "get": {
                "tags": ["Admissions"],
                "summary": "List admissions",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "state", "in": "query", "type": "string", "description": "Comma separated states"},
                    {"name": "trainingId", "in": "query", "type": "string"},
                    {"name": "archived", "in": "query", "type": "boolean"},
                    {"name": "registration", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Admissions"],
                "summary": "Create admission",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdmissionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admissions/{id}/state": {
            "patch": {
                "tags": ["Admissions"],
                "summary": "Move admission to a new state",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangeStateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Forbidden transition", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admissions/{id}/inject": {
            "post": {
                "tags": ["Admissions"],
                "summary": "Send a validated registration to EPC",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Broker unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admissions/{id}/files": {
            "post": {
                "tags": ["Files"],
                "summary": "Attach a file to an admission",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "category", "in": "formData", "type": "string", "enum": ["DOCUMENT", "INVOICE", "PARTICIPANT"]},
                    {"name": "notify", "in": "formData", "type": "boolean"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trainings": {
            "get": {
                "tags": ["Trainings"],
                "summary": "List trainings",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "active", "in": "query", "type": "boolean"},
                    {"name": "managerId", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/prospects": {
            "post": {
                "tags": ["Prospects"],
                "summary": "Register interest in a training",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProspectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{kind}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export a listing",
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string", "enum": ["admissions", "registrations", "archives", "prospects", "trainings"]},
                    {"name": "format", "in": "query", "type": "string", "enum": ["xlsx", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "AdmissionRequest": {
            "type": "object",
            "properties": {
                "trainingId": {"type": "string"},
                "personId": {"type": "string"},
                "email": {"type": "string"},
                "phoneMobile": {"type": "string"},
                "address": {"type": "object"}
            },
            "required": ["trainingId"]
        },
        "ChangeStateRequest": {
            "type": "object",
            "properties": {
                "state": {"type": "string"},
                "reason": {"type": "string"},
                "otherReason": {"type": "string"}
            },
            "required": ["state"]
        },
        "CreateProspectRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "firstName": {"type": "string"},
                "email": {"type": "string"},
                "phoneNumber": {"type": "string"},
                "postalCode": {"type": "string"},
                "city": {"type": "string"},
                "trainingId": {"type": "string"}
            },
            "required": ["email"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "fields": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
