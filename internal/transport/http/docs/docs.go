// Package docs holds the OpenAPI document served by the Swagger UI.
//
// Regenerate with:
//
//	swag init -g internal/transport/http/http.go -o internal/transport/http/docs --parseInternal
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
        "/v1/tones": {
            "get": {
                "produces": ["application/json"],
                "tags": ["tones"],
                "summary": "List response tones",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/tone.Info"}}
                    }
                }
            }
        },
        "/v1/responses": {
            "post": {
                "description": "Produces response text in the requested tone, with speech when available.\nHosted generation falls back to pre-written responses and never fails for a valid request.\nAn identical request may be answered from memory.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["responses"],
                "summary": "Generate a supportive response",
                "parameters": [
                    {
                        "description": "What the user shared and the tone to answer in",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.ResponseRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.GenerationResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/responses/regenerate": {
            "post": {
                "description": "Same as /v1/responses but always produces a fresh response.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["responses"],
                "summary": "Regenerate a supportive response",
                "parameters": [
                    {
                        "description": "What the user shared and the tone to answer in",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/http.ResponseRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.GenerationResult"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/transcriptions": {
            "post": {
                "description": "POST the raw clip bytes with their Content-Type. Failures carry an advisory\nasking the user to type instead.",
                "consumes": ["audio/webm", "audio/wav", "audio/mpeg"],
                "produces": ["application/json"],
                "tags": ["voice"],
                "summary": "Transcribe a recorded clip",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TranscriptionResult"}},
                    "403": {"description": "Microphone permission denied", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "413": {"description": "Clip too large", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Transcription failed", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Voice input unsupported", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/conversations": {
            "get": {
                "description": "Newest first. Optionally filtered by tone and a case-insensitive search.",
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "List saved conversations",
                "parameters": [
                    {"type": "string", "description": "Tone identifier", "name": "tone", "in": "query"},
                    {"type": "string", "description": "Search text", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/message.ConversationRecord"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            },
            "post": {
                "description": "The id and timestamp are assigned when omitted.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Save a conversation",
                "parameters": [
                    {
                        "description": "Completed exchange",
                        "name": "conversation",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.ConversationRecord"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/message.ConversationRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/conversations/{id}/export": {
            "get": {
                "description": "Plain-text document with the latest reflection, served as a download.",
                "produces": ["text/plain"],
                "tags": ["history"],
                "summary": "Export one conversation",
                "parameters": [
                    {"type": "string", "description": "Conversation id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/reflections": {
            "get": {
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "List saved reflections",
                "parameters": [
                    {"type": "string", "description": "Only reflections on this conversation", "name": "conversationId", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/message.ReflectionRecord"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "Save a reflection",
                "parameters": [
                    {
                        "description": "Reflection on a conversation",
                        "name": "reflection",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/message.ReflectionRecord"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/message.ReflectionRecord"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/v1/export": {
            "get": {
                "description": "Every conversation in saved order, each with its latest reflection.",
                "produces": ["text/plain"],
                "tags": ["history"],
                "summary": "Export all history",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "string"}}
                }
            }
        },
        "/v1/stats": {
            "get": {
                "description": "Counts, average reflection rating and conversations per day.",
                "produces": ["application/json"],
                "tags": ["history"],
                "summary": "History statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/history.Stats"}}
                }
            }
        },
        "/v1/voice": {
            "get": {
                "description": "Upgrades to a WebSocket. Binary frames are recorded clips, which are transcribed and\nanswered. JSON frames: {\"type\":\"config\",\"tone\",\"audio\",\"contentType\"},\n{\"type\":\"text\",\"text\"} and {\"type\":\"regenerate\"}. The server replies with \"ready\",\n\"transcript\", \"response\", \"advisory\" and \"error\" frames.",
                "tags": ["voice"],
                "summary": "Spoken conversation session",
                "parameters": [
                    {"type": "string", "description": "Initial tone identifier", "name": "tone", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        }
    },
    "definitions": {
        "history.Stats": {
            "type": "object",
            "properties": {
                "averageRating": {"type": "number"},
                "conversations": {"type": "integer"},
                "perDay": {"type": "number"},
                "reflections": {"type": "integer"}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "advisory": {"$ref": "#/definitions/message.Advisory"},
                "error": {"type": "string"}
            }
        },
        "http.ResponseRequest": {
            "type": "object",
            "properties": {
                "audio": {"description": "Audio requests speech. Omitted means the server default.", "type": "boolean"},
                "tone": {"type": "string", "example": "protective"},
                "userMessage": {"type": "string", "maxLength": 1000, "example": "I keep thinking I am not good enough"}
            }
        },
        "http.TranscriptionResult": {
            "type": "object",
            "properties": {
                "text": {"type": "string"}
            }
        },
        "message.Advisory": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "message.Audio": {
            "type": "object",
            "properties": {
                "contentType": {"type": "string"},
                "data": {"type": "string", "format": "byte"},
                "source": {"type": "string", "enum": ["", "remote", "local"]},
                "voice": {"type": "string"}
            }
        },
        "message.ConversationRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "responseText": {"type": "string"},
                "timestamp": {"type": "string"},
                "tone": {"type": "string", "enum": ["nurturing", "validating", "protective", "encouraging"]},
                "userMessage": {"type": "string", "maxLength": 1000}
            }
        },
        "message.GenerationResult": {
            "type": "object",
            "properties": {
                "advisory": {"$ref": "#/definitions/message.Advisory"},
                "audio": {"$ref": "#/definitions/message.Audio"},
                "audioSource": {"type": "string", "enum": ["", "remote", "local"]},
                "createdAt": {"type": "string"},
                "text": {"type": "string"},
                "textSource": {"type": "string", "enum": ["remote", "catalog", "default"]},
                "tone": {"type": "string", "enum": ["nurturing", "validating", "protective", "encouraging"]}
            }
        },
        "message.ReflectionRecord": {
            "type": "object",
            "properties": {
                "conversationId": {"type": "string"},
                "emotionalState": {"type": "string", "maxLength": 100},
                "id": {"type": "string"},
                "insights": {"type": "string", "maxLength": 500},
                "rating": {"type": "integer", "minimum": 1, "maximum": 5},
                "timestamp": {"type": "string"}
            }
        },
        "tone.Info": {
            "type": "object",
            "properties": {
                "color": {"type": "string"},
                "description": {"type": "string"},
                "icon": {"type": "string"},
                "id": {"type": "string"},
                "label": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "kindvoice API",
	Description:      "Supportive response generation with voice input, speech output and history.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
