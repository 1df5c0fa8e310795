// Package docs registers the Ember OpenAPI document with swag so the
// swagger UI at /docs can serve it.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "Ember"},
        "license": {"name": "MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["meta"],
                "summary": "API root info",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health/store": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "State store health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object"}}
                }
            }
        },
        "/sync": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Ingest a daily snapshot",
                "description": "Evaluates the snapshot against the user's baseline, sends at most one check-in per day when an anomaly is found, and records the snapshot.",
                "parameters": [{
                    "in": "body", "name": "body", "required": true,
                    "schema": {"$ref": "#/definitions/handler.SyncRequest"}
                }],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/checkin.SnapshotResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/webhook/inbound": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Inbound reply",
                "description": "Accepts a reply only while today's thread is open; answers once and closes the thread. Other replies return replied=false.",
                "parameters": [{
                    "in": "body", "name": "body", "required": true,
                    "schema": {"$ref": "#/definitions/handler.InboundRequest"}
                }],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/checkin.ReplyResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/webhook/telegram": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ingest"],
                "summary": "Telegram webhook",
                "description": "Receives a Telegram Bot API update and treats the message text as an inbound reply from the chat.",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/checkin.ReplyResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{identity}/state": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get user state",
                "parameters": [{"type": "string", "description": "User identity", "name": "identity", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/state.UserState"}},
                    "304": {"description": "Not Modified"},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        },
        "/api/v1/users/{identity}/baseline": {
            "get": {
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get user baseline",
                "parameters": [{"type": "string", "description": "User identity", "name": "identity", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BaselineResponse"}},
                    "304": {"description": "Not Modified"},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/respond.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "baseline.Snapshot": {
            "type": "object",
            "properties": {
                "timestamp": {"type": "string", "format": "date-time"},
                "sleep_duration_hours": {"type": "number"},
                "wake_time_hour": {"type": "number"},
                "resting_hr": {"type": "number"},
                "running_minutes": {"type": "number"},
                "weekday": {"type": "integer", "description": "1 = Sunday ... 7 = Saturday; derived from timestamp when 0"}
            }
        },
        "baseline.Stat": {
            "type": "object",
            "properties": {
                "mean": {"type": "number"},
                "stddev": {"type": "number"},
                "count": {"type": "integer"}
            }
        },
        "baseline.Baseline": {
            "type": "object",
            "properties": {
                "sleep_duration_hours": {"$ref": "#/definitions/baseline.Stat"},
                "wake_time_hour": {"$ref": "#/definitions/baseline.Stat"},
                "resting_hr": {"$ref": "#/definitions/baseline.Stat"},
                "workout_minutes": {"$ref": "#/definitions/baseline.Stat"},
                "run_frequency": {"type": "number"},
                "typical_run_hour": {"type": "integer"},
                "samples": {"type": "integer"}
            }
        },
        "anomaly.Anomaly": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["late_wake", "short_sleep", "skipped_run", "elevated_resting_hr", "short_workout"]},
                "z_score": {"description": "number, or \"+Inf\"/\"-Inf\" when the baseline has zero variance"},
                "context": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "checkin.SnapshotResult": {
            "type": "object",
            "properties": {
                "anomaly": {"$ref": "#/definitions/anomaly.Anomaly"},
                "sent": {"type": "boolean"}
            }
        },
        "checkin.ReplyResult": {
            "type": "object",
            "properties": {"replied": {"type": "boolean"}}
        },
        "handler.SyncRequest": {
            "type": "object",
            "properties": {
                "identity": {"type": "string"},
                "snapshot": {"$ref": "#/definitions/baseline.Snapshot"}
            }
        },
        "handler.InboundRequest": {
            "type": "object",
            "properties": {
                "identity": {"type": "string"},
                "text": {"type": "string"}
            }
        },
        "handler.BaselineResponse": {
            "type": "object",
            "properties": {
                "identity": {"type": "string"},
                "baseline": {"$ref": "#/definitions/baseline.Baseline"}
            }
        },
        "state.Turn": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "role": {"type": "string", "enum": ["assistant", "user"]},
                "content": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "state.UserState": {
            "type": "object",
            "properties": {
                "identity": {"type": "string"},
                "window": {"type": "array", "items": {"$ref": "#/definitions/baseline.Snapshot"}},
                "last_message_date": {"type": "string", "format": "date-time"},
                "thread_open": {"type": "boolean"},
                "thread_anomaly": {"type": "string"},
                "conversation": {"type": "array", "items": {"$ref": "#/definitions/state.Turn"}},
                "snapshots_seen": {"type": "integer"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "respond.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {
                    "type": "object",
                    "properties": {
                        "code": {"type": "string"},
                        "message": {"type": "string"},
                        "detail": {"type": "string"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:8000",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Ember API",
	Description:      "Daily health-snapshot baselines, anomaly check-ins and reply handling.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
