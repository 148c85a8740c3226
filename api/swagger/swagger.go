package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "WIMS Bridge API",
        "description": "Bridge between a course platform and a WIMS exercise server",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Service account authentication"},
        {"name": "Activities", "description": "Bridged activity records"},
        {"name": "Classes", "description": "Remote class operations"},
        {"name": "Access", "description": "Session URLs into the WIMS server"},
        {"name": "Sync", "description": "Score synchronisation runs"},
        {"name": "Export", "description": "Grade downloads"},
        {"name": "Status", "description": "Connectivity checks"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate a service account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/wims/status": {
            "get": {
                "tags": ["Status"],
                "summary": "Check connectivity and credentials against the WIMS server",
                "responses": {
                    "200": {"description": "Connected"},
                    "502": {"description": "Server unreachable or incompatible"}
                }
            }
        },
        "/activities": {
            "get": {
                "tags": ["Activities"],
                "summary": "List activities",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Activities"],
                "summary": "Register an activity",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateActivityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activities/{id}": {
            "get": {
                "tags": ["Activities"],
                "summary": "Get one activity",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Activities"],
                "summary": "Update activity settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateActivityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Activities"],
                "summary": "Delete an activity record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/activities/{id}/class": {
            "post": {
                "tags": ["Activities"],
                "summary": "Ensure the activity has a remote class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "force", "in": "query", "required": false, "type": "boolean", "description": "Recreate the class when the stored one vanished"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Class missing and not restorable"}
                }
            }
        },
        "/activities/{id}/class/config": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get remote class settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Update remote class settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateClassConfigRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/activities/{id}/class/sheets": {
            "get": {
                "tags": ["Classes"],
                "summary": "List the worksheets and exams of the class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activities/{id}/class/worksheets/{sheet}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get worksheet settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "sheet", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Update worksheet settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "sheet", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSheetRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/activities/{id}/class/exams/{sheet}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get exam settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "sheet", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Update exam settings",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "sheet", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSheetRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/activities/{id}/access/supervisor": {
            "get": {
                "tags": ["Access"],
                "summary": "Open a supervisor session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "page", "in": "query", "type": "string", "enum": ["home", "grades", "worksheet", "exam"]},
                    {"name": "ref", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activities/{id}/access/users/{userID}": {
            "get": {
                "tags": ["Access"],
                "summary": "Open a student session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "userID", "in": "path", "required": true, "type": "integer"},
                    {"name": "page", "in": "query", "type": "string", "enum": ["home", "grades", "worksheet", "exam"]},
                    {"name": "ref", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activities/{id}/class/users/{userID}/scores": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get all scores of one user in the class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "userID", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activities/{id}/class/users/{userID}": {
            "delete": {
                "tags": ["Classes"],
                "summary": "Delete one participant from the class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "userID", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/activities/{id}/class/participants": {
            "delete": {
                "tags": ["Classes"],
                "summary": "Remove all participants and their work from the class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/activities/{id}/class/backups": {
            "get": {
                "tags": ["Classes"],
                "summary": "List restorable class backups",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/activities/{id}/class/backups/restore": {
            "post": {
                "tags": ["Classes"],
                "summary": "Restore the class from a yearly backup",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RestoreBackupRequest"}}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/sync/runs": {
            "post": {
                "tags": ["Sync"],
                "summary": "Queue a synchronisation run",
                "responses": {
                    "202": {"description": "Queued"}
                }
            }
        },
        "/sync/runs/last": {
            "get": {
                "tags": ["Sync"],
                "summary": "Get the most recent run report",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sync/runs/{runID}": {
            "get": {
                "tags": ["Sync"],
                "summary": "Get one run report",
                "parameters": [
                    {"name": "runID", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{courseID}/grades/export": {
            "get": {
                "tags": ["Export"],
                "summary": "Download synchronised course grades",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            },
            "post": {
                "tags": ["Export"],
                "summary": "Archive course grades and mint a signed download link",
                "parameters": [
                    {"name": "courseID", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ArchiveTicket"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Export"],
                "summary": "Download an archived export via its signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"},
                    "404": {"description": "Archive no longer available"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "login": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["login", "password"]
        },
        "CreateActivityRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "integer"},
                "name": {"type": "string"},
                "institution": {"type": "string"},
                "supervisor_first_name": {"type": "string"},
                "supervisor_last_name": {"type": "string"},
                "supervisor_email": {"type": "string"},
                "lang": {"type": "string"},
                "expiration": {"type": "string"}
            },
            "required": ["course_id", "name", "supervisor_first_name", "supervisor_last_name"]
        },
        "UpdateActivityRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "institution": {"type": "string"},
                "supervisor_first_name": {"type": "string"},
                "supervisor_last_name": {"type": "string"},
                "supervisor_email": {"type": "string"},
                "lang": {"type": "string"},
                "expiration": {"type": "string"}
            }
        },
        "UpdateClassConfigRequest": {
            "type": "object",
            "properties": {
                "class": {"type": "object"},
                "supervisor": {"type": "object"}
            }
        },
        "UpdateSheetRequest": {
            "type": "object",
            "properties": {
                "values": {"type": "object"}
            },
            "required": ["values"]
        },
        "RestoreBackupRequest": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"}
            },
            "required": ["year"]
        },
        "ArchiveTicket": {
            "type": "object",
            "properties": {
                "export_id": {"type": "string"},
                "filename": {"type": "string"},
                "token": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
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
                "status": {"type": "integer"}
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
