package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Enrollment API",
        "description": "Checkout orchestration and payment reconciliation for course enrollment fees.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Checkout", "description": "Hosted checkout creation and reuse"},
        {"name": "Webhooks", "description": "Payment gateway notifications"},
        {"name": "Admin", "description": "Administrative diagnostics"}
    ],
    "paths": {
        "/checkout/pre-enrollment": {
            "post": {
                "tags": ["Checkout"],
                "summary": "Create or reuse the pre-enrollment fee checkout",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing checkout reused", "schema": {"$ref": "#/definitions/CheckoutEnvelope"}},
                    "201": {"description": "Checkout created", "schema": {"$ref": "#/definitions/CheckoutEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already paid or checkout in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Gateway rejected the request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/checkout/enrollment": {
            "post": {
                "tags": ["Checkout"],
                "summary": "Create or reuse the enrollment fee checkout, crediting the pre-enrollment fee",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "Existing checkout reused", "schema": {"$ref": "#/definitions/CheckoutEnvelope"}},
                    "201": {"description": "Checkout created", "schema": {"$ref": "#/definitions/CheckoutEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner or override not allowed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already paid or checkout in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Gateway rejected the request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/checkout/return": {
            "get": {
                "tags": ["Checkout"],
                "summary": "Resolve a signed gateway redirect token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"},
                    {"name": "result", "in": "query", "type": "string", "enum": ["success", "cancel", "expired"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/webhooks/asaas": {
            "post": {
                "tags": ["Webhooks"],
                "summary": "Receive a payment notification",
                "consumes": ["application/json"],
                "produces": ["text/plain"],
                "parameters": [
                    {"name": "asaas-access-token", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AsaasWebhookEvent"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Malformed payload"},
                    "401": {"description": "Invalid webhook token"},
                    "404": {"description": "No local payment matched"}
                }
            }
        },
        "/admin/pre-enrollments/{id}/discount": {
            "get": {
                "tags": ["Admin"],
                "summary": "Preview the enrollment amount decision without side effects",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CheckoutRequest": {
            "type": "object",
            "required": ["pre_enrollment_id"],
            "properties": {
                "pre_enrollment_id": {"type": "string"},
                "enrollment_id": {"type": "string"},
                "force_recalculate": {"type": "boolean"},
                "override_amount": {"type": "number"}
            }
        },
        "CheckoutResponse": {
            "type": "object",
            "properties": {
                "checkout_url": {"type": "string"},
                "checkout_id": {"type": "string"},
                "payment_id": {"type": "string"},
                "kind": {"type": "string"},
                "applied_amount": {"type": "number"},
                "original_amount": {"type": "number"},
                "reason": {"type": "string"},
                "reused": {"type": "boolean"},
                "paid_total": {"type": "number"},
                "db_candidate": {"type": "number"},
                "payments_candidate": {"type": "number"},
                "cancelled_payment_id": {"type": "string"},
                "environment": {"type": "string"}
            }
        },
        "CheckoutEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/CheckoutResponse"}
            }
        },
        "AsaasWebhookEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "event": {"type": "string"},
                "payment": {
                    "type": "object",
                    "properties": {
                        "id": {"type": "string"},
                        "checkoutSession": {"type": "string"},
                        "externalReference": {"type": "string"},
                        "value": {"type": "number"},
                        "status": {"type": "string"},
                        "paymentDate": {"type": "string"}
                    }
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
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
