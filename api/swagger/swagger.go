package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Bio Attendance API",
        "description": "Classifies biometric scans into shift records and manages the attendance point ledger",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scans", "description": "Biometric scan uploads"},
        {"name": "ShiftRecords", "description": "Classified shift records"},
        {"name": "Points", "description": "Attendance point ledger and expiration engine"},
        {"name": "Metrics", "description": "Service counters"}
    ],
    "paths": {
        "/scans/batches": {
            "post": {
                "tags": ["Scans"],
                "summary": "Upload a batch of biometric scans",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/IngestScansRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-records": {
            "get": {
                "tags": ["ShiftRecords"],
                "summary": "List shift records",
                "parameters": [
                    {"name": "employee_id", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_to", "in": "query", "type": "string", "format": "date"},
                    {"name": "status", "in": "query", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"name": "provisional", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-records/finalize": {
            "post": {
                "tags": ["ShiftRecords"],
                "summary": "Sweep absences for a shift date",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FinalizeDayRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-records/reclassify": {
            "post": {
                "tags": ["ShiftRecords"],
                "summary": "Queue reclassification of an employee's shifts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReclassifyRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-records/{id}/scans": {
            "get": {
                "tags": ["ShiftRecords"],
                "summary": "In/out scans attributed to a shift record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shift-records/{id}/verify": {
            "patch": {
                "tags": ["ShiftRecords"],
                "summary": "Apply a supervisor correction to a shift record",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyShiftRecordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points": {
            "get": {
                "tags": ["Points"],
                "summary": "List attendance points",
                "parameters": [
                    {"name": "employee_id", "in": "query", "type": "string"},
                    {"name": "date_from", "in": "query", "type": "string", "format": "date"},
                    {"name": "date_to", "in": "query", "type": "string", "format": "date"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "excused", "expired"]},
                    {"name": "expiration_type", "in": "query", "type": "string", "enum": ["none", "sro", "gbro"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/{id}/excuse": {
            "post": {
                "tags": ["Points"],
                "summary": "Excuse an active point",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExcusePointRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Point already excused or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/points/expiration-runs": {
            "get": {
                "tags": ["Points"],
                "summary": "Recent expiration runs",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Points"],
                "summary": "Run the point expiration engine",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/RunExpirationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Another run holds the lock", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/employees/{id}/points/summary": {
            "get": {
                "tags": ["Points"],
                "summary": "Active point total of an employee",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Engine counters digest",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScanEventInput": {
            "type": "object",
            "properties": {
                "employee_id": {"type": "string"},
                "scanned_at": {"type": "string", "format": "date-time"}
            },
            "required": ["employee_id", "scanned_at"]
        },
        "IngestScansRequest": {
            "type": "object",
            "properties": {
                "batch_id": {"type": "string"},
                "events": {"type": "array", "items": {"$ref": "#/definitions/ScanEventInput"}}
            },
            "required": ["events"]
        },
        "FinalizeDayRequest": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"}
            },
            "required": ["date"]
        },
        "ReclassifyRequest": {
            "type": "object",
            "properties": {
                "employee_id": {"type": "string"},
                "date_from": {"type": "string", "format": "date"},
                "date_to": {"type": "string", "format": "date"}
            },
            "required": ["employee_id", "date_from", "date_to"]
        },
        "VerifyShiftRecordRequest": {
            "type": "object",
            "properties": {
                "time_in": {"type": "string", "format": "date-time"},
                "time_out": {"type": "string", "format": "date-time"},
                "present_no_bio": {"type": "boolean"},
                "verified_by": {"type": "string"}
            },
            "required": ["verified_by"]
        },
        "ExcusePointRequest": {
            "type": "object",
            "properties": {
                "excused_by": {"type": "string"},
                "reason": {"type": "string", "maxLength": 500}
            },
            "required": ["excused_by", "reason"]
        },
        "RunExpirationRequest": {
            "type": "object",
            "properties": {
                "run_date": {"type": "string", "format": "date"}
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
