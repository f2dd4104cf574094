// Package docs registers the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List orders",
                "parameters": [
                    {"type": "string", "description": "Substring of status, customer name or email", "name": "search", "in": "query"},
                    {"type": "string", "description": "Comma separated statuses", "name": "status", "in": "query"},
                    {"type": "string", "description": "Comma separated ids", "name": "ids", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/converters.Order"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Create an order",
                "parameters": [
                    {"description": "Order", "name": "order", "in": "body", "required": true, "schema": {"$ref": "#/definitions/createorder.OrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/converters.Order"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/converters.Error"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            }
        },
        "/api/orders/bulk": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Create many orders",
                "parameters": [
                    {"description": "Orders", "name": "orders", "in": "body", "required": true, "schema": {"$ref": "#/definitions/createorder.BulkRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "array", "items": {"$ref": "#/definitions/converters.BulkResult"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "array", "items": {"$ref": "#/definitions/converters.BulkResult"}}}
                }
            }
        },
        "/api/orders/delayed": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "List delayed orders",
                "parameters": [
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/converters.Order"}}}
                }
            }
        },
        "/api/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get an order",
                "parameters": [
                    {"type": "integer", "description": "Order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/converters.Order"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            },
            "delete": {
                "tags": ["orders"],
                "summary": "Delete an order",
                "parameters": [
                    {"type": "integer", "description": "Order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            }
        },
        "/api/orders/{id}/history": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get the status history of an order",
                "parameters": [
                    {"type": "integer", "description": "Order id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/converters.HistoryEntry"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            }
        },
        "/api/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "List products",
                "parameters": [
                    {"type": "string", "description": "Category", "name": "category", "in": "query"},
                    {"type": "integer", "description": "Page size", "name": "limit", "in": "query"},
                    {"type": "integer", "description": "Page offset", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/converters.Product"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Create a product",
                "parameters": [
                    {"description": "Product", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/products.CreateProductRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/converters.Product"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            }
        },
        "/api/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Get a product",
                "parameters": [
                    {"type": "integer", "description": "Product id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/converters.Product"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            },
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Update a product",
                "parameters": [
                    {"type": "integer", "description": "Product id", "name": "id", "in": "path", "required": true},
                    {"description": "Changed fields", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/products.UpdateProductRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/converters.Product"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/converters.Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            },
            "delete": {
                "tags": ["products"],
                "summary": "Delete a product no order references",
                "parameters": [
                    {"type": "integer", "description": "Product id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            }
        },
        "/api/products/{id}/restock": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Add stock to a product",
                "parameters": [
                    {"type": "integer", "description": "Product id", "name": "id", "in": "path", "required": true},
                    {"description": "Units to add", "name": "restock", "in": "body", "required": true, "schema": {"$ref": "#/definitions/products.RestockRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/converters.Product"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/converters.Error"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/converters.Error"}}
                }
            }
        }
    },
    "definitions": {
        "converters.Error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "converters.OrderItem": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "productId": {"type": "integer"},
                "productName": {"type": "string"},
                "quantity": {"type": "integer"},
                "unitPrice": {"type": "string"},
                "subtotal": {"type": "string"}
            }
        },
        "converters.Order": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "customerName": {"type": "string"},
                "customerEmail": {"type": "string"},
                "customerPhone": {"type": "string"},
                "deliveryAddress": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "PROCESSING", "DISPATCHED", "DELIVERED", "CANCELLED", "DELAYED"]},
                "totalPrice": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "lastTransitionAt": {"type": "string"},
                "orderItems": {"type": "array", "items": {"$ref": "#/definitions/converters.OrderItem"}}
            }
        },
        "converters.HistoryEntry": {
            "type": "object",
            "properties": {
                "seq": {"type": "integer"},
                "previousStatus": {"type": "string"},
                "newStatus": {"type": "string"},
                "createdAt": {"type": "string"}
            }
        },
        "converters.BulkResult": {
            "type": "object",
            "properties": {
                "index": {"type": "integer"},
                "order": {"$ref": "#/definitions/converters.Order"},
                "error": {"type": "string"}
            }
        },
        "converters.Product": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "price": {"type": "string"},
                "stock": {"type": "integer"},
                "expiryDate": {"type": "string", "format": "date"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"}
            }
        },
        "createorder.OrderItemRequest": {
            "type": "object",
            "required": ["productId", "quantity"],
            "properties": {
                "productId": {"type": "integer"},
                "quantity": {"type": "integer", "minimum": 1}
            }
        },
        "createorder.OrderRequest": {
            "type": "object",
            "required": ["customerName", "customerEmail", "deliveryAddress", "orderItems"],
            "properties": {
                "customerName": {"type": "string"},
                "customerEmail": {"type": "string"},
                "customerPhone": {"type": "string"},
                "deliveryAddress": {"type": "string"},
                "orderItems": {"type": "array", "items": {"$ref": "#/definitions/createorder.OrderItemRequest"}}
            }
        },
        "createorder.BulkRequest": {
            "type": "object",
            "required": ["orders"],
            "properties": {
                "orders": {"type": "array", "items": {"$ref": "#/definitions/createorder.OrderRequest"}}
            }
        },
        "products.CreateProductRequest": {
            "type": "object",
            "required": ["name", "price"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "price": {"type": "string", "example": "19.99"},
                "stock": {"type": "integer", "minimum": 0},
                "expiryDate": {"type": "string", "format": "date"}
            }
        },
        "products.UpdateProductRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "category": {"type": "string"},
                "price": {"type": "string", "example": "19.99"},
                "stock": {"type": "integer", "minimum": 0},
                "expiryDate": {"type": "string", "format": "date", "description": "Empty string clears it"}
            }
        },
        "products.RestockRequest": {
            "type": "object",
            "required": ["quantity"],
            "properties": {
                "quantity": {"type": "integer", "minimum": 1}
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
	Title:            "Fulfillment API",
	Description:      "Order intake, catalog and fulfillment status.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
