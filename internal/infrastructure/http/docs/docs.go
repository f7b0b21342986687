// Package docs registers the OpenAPI description served under /swagger/.
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
        "/listings": {
            "post": {
                "summary": "List an asset for sale",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/caller"},
                    {"$ref": "#/parameters/timestamp"},
                    {"$ref": "#/parameters/nonce"},
                    {"$ref": "#/parameters/signature"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/ListItemBody"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Listing"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/Error"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/Error"}},
                    "403": {"description": "NotOwner", "schema": {"$ref": "#/definitions/Error"}},
                    "409": {"description": "AlreadyListed", "schema": {"$ref": "#/definitions/Error"}},
                    "422": {"description": "PriceMustBeAboveZero or NotApprovedForMarketplace", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/listings/{contract}/{tokenId}": {
            "get": {
                "summary": "Get the listing of an asset",
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/contract"},
                    {"$ref": "#/parameters/tokenId"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Listing"}}
                }
            },
            "put": {
                "summary": "Change the price of a listing",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/contract"},
                    {"$ref": "#/parameters/tokenId"},
                    {"$ref": "#/parameters/caller"},
                    {"$ref": "#/parameters/timestamp"},
                    {"$ref": "#/parameters/nonce"},
                    {"$ref": "#/parameters/signature"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/PriceBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Listing"}},
                    "403": {"description": "NotOwner", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "NotListed", "schema": {"$ref": "#/definitions/Error"}}
                }
            },
            "delete": {
                "summary": "Cancel a listing",
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/contract"},
                    {"$ref": "#/parameters/tokenId"},
                    {"$ref": "#/parameters/caller"},
                    {"$ref": "#/parameters/timestamp"},
                    {"$ref": "#/parameters/nonce"},
                    {"$ref": "#/parameters/signature"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "NotOwner", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "NotListed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/listings/{contract}/{tokenId}/buy": {
            "post": {
                "summary": "Buy a listed asset",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/contract"},
                    {"$ref": "#/parameters/tokenId"},
                    {"$ref": "#/parameters/caller"},
                    {"$ref": "#/parameters/timestamp"},
                    {"$ref": "#/parameters/nonce"},
                    {"$ref": "#/parameters/signature"},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/PaymentBody"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Purchase"}},
                    "402": {"description": "NotEnoughFunds", "schema": {"$ref": "#/definitions/Error"}},
                    "404": {"description": "NotListed", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "TransferFailed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/proceeds/withdraw": {
            "post": {
                "summary": "Withdraw all pending proceeds of the caller",
                "produces": ["application/json"],
                "parameters": [
                    {"$ref": "#/parameters/caller"},
                    {"$ref": "#/parameters/timestamp"},
                    {"$ref": "#/parameters/nonce"},
                    {"$ref": "#/parameters/signature"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Withdrawal"}},
                    "409": {"description": "NoProceeds", "schema": {"$ref": "#/definitions/Error"}},
                    "502": {"description": "TransferFailed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/proceeds/{seller}": {
            "get": {
                "summary": "Get the pending proceeds of a seller",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "path", "name": "seller", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Proceeds"}}
                }
            }
        },
        "/events": {
            "get": {
                "summary": "Page through committed ledger events",
                "produces": ["application/json"],
                "parameters": [
                    {"in": "query", "name": "after", "type": "integer", "description": "Return events with a higher sequence"},
                    {"in": "query", "name": "limit", "type": "integer", "description": "Page size, at most 1000"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/EventPage"}}
                }
            }
        },
        "/events/stream": {
            "get": {
                "summary": "Websocket stream of ledger events",
                "parameters": [
                    {"in": "query", "name": "type", "type": "string", "enum": ["Listed", "Bought", "Cancelled"]}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"}
                }
            }
        }
    },
    "parameters": {
        "contract": {"in": "path", "name": "contract", "required": true, "type": "string"},
        "tokenId": {"in": "path", "name": "tokenId", "required": true, "type": "string"},
        "caller": {"in": "header", "name": "X-Caller", "required": true, "type": "string"},
        "timestamp": {"in": "header", "name": "X-Timestamp", "required": true, "type": "string", "description": "Unix seconds"},
        "nonce": {"in": "header", "name": "X-Nonce", "required": true, "type": "string"},
        "signature": {"in": "header", "name": "X-Signature", "required": true, "type": "string", "description": "hex HMAC-SHA256 of timestamp, nonce, caller and body joined by newlines"}
    },
    "definitions": {
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "string"}
            }
        },
        "ListItemBody": {
            "type": "object",
            "properties": {
                "contract": {"type": "string"},
                "tokenId": {"type": "string"},
                "price": {"type": "string", "example": "100"}
            }
        },
        "PriceBody": {
            "type": "object",
            "properties": {
                "price": {"type": "string", "example": "100"}
            }
        },
        "PaymentBody": {
            "type": "object",
            "properties": {
                "payment": {"type": "string", "example": "150"}
            }
        },
        "Listing": {
            "type": "object",
            "properties": {
                "contract": {"type": "string"},
                "tokenId": {"type": "string"},
                "price": {"type": "string"},
                "seller": {"type": "string"},
                "active": {"type": "boolean"}
            }
        },
        "Purchase": {
            "type": "object",
            "properties": {
                "contract": {"type": "string"},
                "tokenId": {"type": "string"},
                "seller": {"type": "string"},
                "buyer": {"type": "string"},
                "price": {"type": "string"},
                "paid": {"type": "string"}
            }
        },
        "Proceeds": {
            "type": "object",
            "properties": {
                "seller": {"type": "string"},
                "proceeds": {"type": "string"}
            }
        },
        "Withdrawal": {
            "type": "object",
            "properties": {
                "seller": {"type": "string"},
                "withdrawn": {"type": "string"}
            }
        },
        "Event": {
            "type": "object",
            "properties": {
                "sequence": {"type": "integer"},
                "id": {"type": "string"},
                "type": {"type": "string", "enum": ["Listed", "Bought", "Cancelled"]},
                "account": {"type": "string"},
                "asset": {
                    "type": "object",
                    "properties": {
                        "contract": {"type": "string"},
                        "tokenId": {"type": "string"}
                    }
                },
                "price": {"type": "string"},
                "correlationId": {"type": "string"},
                "occurredAt": {"type": "string", "format": "date-time"}
            }
        },
        "EventPage": {
            "type": "object",
            "properties": {
                "events": {"type": "array", "items": {"$ref": "#/definitions/Event"}},
                "next": {"type": "integer"}
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
	Title:            "Bazaar marketplace API",
	Description:      "Escrow-free marketplace ledger for unique digital assets.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
