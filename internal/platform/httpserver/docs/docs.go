// Package docs registers the OpenAPI document served under /swagger/.
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
        "/api/v1/polls": {
            "get": {
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "List polls",
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ListPollsResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Create a poll",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreatePollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/PollResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/polls/{poll_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["polls"],
                "summary": "Get a poll",
                "parameters": [{"type": "integer", "name": "poll_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/PollResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/polls/{poll_id}/votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["votes"],
                "summary": "Cast a staked vote",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VoteRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/VoteResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/polls/{poll_id}/demo-votes": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["votes"],
                "summary": "Cast a demo vote keyed by session token",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DemoVoteRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/DemoVoteResponse"}}}
            }
        },
        "/api/v1/polls/{poll_id}/resolve": {
            "post": {
                "produces": ["application/json"],
                "tags": ["resolution"],
                "summary": "Resolve an ended poll",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResolveResponse"}}}
            }
        },
        "/api/v1/polls/{poll_id}/emergency-resolve": {
            "post": {
                "produces": ["application/json"],
                "tags": ["resolution"],
                "summary": "Resolve a poll before its end time (owner only)",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResolveResponse"}}}
            }
        },
        "/api/v1/polls/{poll_id}/claims": {
            "post": {
                "produces": ["application/json"],
                "tags": ["claims"],
                "summary": "Claim winnings",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ClaimResponse"}},
                    "502": {"description": "Transfer failed", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/v1/polls/{poll_id}/claims/batch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["claims"],
                "summary": "Pay winners of a resolved poll in one call",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchClaimRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BatchClaimResponse"}},
                    "500": {"description": "Stopped by a storage failure", "schema": {"$ref": "#/definitions/BatchClaimResponse"}}
                }
            }
        },
        "/api/v1/polls/{poll_id}/tallies": {
            "get": {
                "produces": ["application/json"],
                "tags": ["queries"],
                "summary": "Vote counts and pools per option",
                "parameters": [{"type": "integer", "name": "poll_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TalliesResponse"}}}
            }
        },
        "/api/v1/polls/{poll_id}/potential-winnings": {
            "get": {
                "produces": ["application/json"],
                "tags": ["queries"],
                "summary": "Per-winner payout if the option won now",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "integer", "name": "option_id", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/PotentialWinningsResponse"}}}
            }
        },
        "/api/v1/polls/{poll_id}/votes/{voter_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["queries"],
                "summary": "Vote and claim state of one identity",
                "parameters": [
                    {"type": "integer", "name": "poll_id", "in": "path", "required": true},
                    {"type": "string", "name": "voter_id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/UserVoteResponse"}}}
            }
        },
        "/api/v1/polls/{poll_id}/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["queries"],
                "summary": "Active flag and time remaining",
                "parameters": [{"type": "integer", "name": "poll_id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/PollStatusResponse"}}}
            }
        },
        "/api/v1/treasury": {
            "get": {
                "produces": ["application/json"],
                "tags": ["treasury"],
                "summary": "Owner and accrued house fees",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TreasuryResponse"}}}
            }
        },
        "/api/v1/treasury/withdraw": {
            "post": {
                "produces": ["application/json"],
                "tags": ["treasury"],
                "summary": "Withdraw house fees to the owner",
                "parameters": [{"type": "string", "name": "X-User-Id", "in": "header", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/WithdrawResponse"}}}
            }
        },
        "/api/v1/treasury/owner": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["treasury"],
                "summary": "Transfer protocol ownership",
                "parameters": [
                    {"type": "string", "name": "X-User-Id", "in": "header", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransferOwnershipRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/TreasuryResponse"}}}
            }
        }
    },
    "definitions": {
        "AmountView": {
            "type": "object",
            "properties": {
                "base_units": {"type": "string"},
                "display": {"type": "string"}
            }
        },
        "ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "CreatePollRequest": {
            "type": "object",
            "properties": {
                "question": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "stake": {"type": "string", "example": "0.1"},
                "duration_minutes": {"type": "integer"},
                "demo_mode": {"type": "boolean"}
            }
        },
        "PollResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "question": {"type": "string"},
                "options": {"type": "array", "items": {"type": "string"}},
                "stake": {"$ref": "#/definitions/AmountView"},
                "creator": {"type": "string"},
                "demo_mode": {"type": "boolean"},
                "created_at": {"type": "string"},
                "end_time": {"type": "string"},
                "resolved": {"type": "boolean"},
                "winning_option": {"type": "integer"},
                "house_fee": {"$ref": "#/definitions/AmountView"},
                "emergency": {"type": "boolean"},
                "replayed": {"type": "boolean"}
            }
        },
        "ListPollsResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/PollResponse"}}
            }
        },
        "VoteRequest": {
            "type": "object",
            "properties": {
                "option_id": {"type": "integer"},
                "value": {"type": "string", "example": "0.1"}
            }
        },
        "VoteResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "voter": {"type": "string"},
                "option_id": {"type": "integer"},
                "amount": {"$ref": "#/definitions/AmountView"},
                "created_at": {"type": "string"}
            }
        },
        "DemoVoteRequest": {
            "type": "object",
            "properties": {
                "option_id": {"type": "integer"},
                "token": {"type": "string"}
            }
        },
        "DemoVoteResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "option_id": {"type": "integer"},
                "counted": {"type": "boolean"}
            }
        },
        "ResolveResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "winning_option": {"type": "integer"},
                "total_pool": {"$ref": "#/definitions/AmountView"},
                "house_fee": {"$ref": "#/definitions/AmountView"},
                "emergency": {"type": "boolean"}
            }
        },
        "ClaimResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "voter": {"type": "string"},
                "amount": {"$ref": "#/definitions/AmountView"}
            }
        },
        "BatchClaimRequest": {
            "type": "object",
            "properties": {
                "identities": {"type": "array", "items": {"type": "string"}}
            }
        },
        "BatchClaimResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "payout": {"$ref": "#/definitions/AmountView"},
                "paid": {"type": "array", "items": {"type": "string"}},
                "skipped": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "voter": {"type": "string"},
                            "reason": {"type": "string"}
                        }
                    }
                },
                "error": {"$ref": "#/definitions/ErrorResponse"}
            }
        },
        "TalliesResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "vote_counts": {"type": "array", "items": {"type": "integer"}},
                "pools": {"type": "array", "items": {"$ref": "#/definitions/AmountView"}},
                "total_pool": {"$ref": "#/definitions/AmountView"}
            }
        },
        "PotentialWinningsResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "option_id": {"type": "integer"},
                "payout": {"$ref": "#/definitions/AmountView"}
            }
        },
        "UserVoteResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "voter": {"type": "string"},
                "has_voted": {"type": "boolean"},
                "option_id": {"type": "integer"},
                "amount": {"$ref": "#/definitions/AmountView"},
                "claimed": {"type": "boolean"}
            }
        },
        "PollStatusResponse": {
            "type": "object",
            "properties": {
                "poll_id": {"type": "integer"},
                "active": {"type": "boolean"},
                "ended": {"type": "boolean"},
                "resolved": {"type": "boolean"},
                "time_remaining_seconds": {"type": "integer"}
            }
        },
        "TreasuryResponse": {
            "type": "object",
            "properties": {
                "owner": {"type": "string"},
                "house_balance": {"$ref": "#/definitions/AmountView"}
            }
        },
        "WithdrawResponse": {
            "type": "object",
            "properties": {
                "owner": {"type": "string"},
                "amount": {"$ref": "#/definitions/AmountView"}
            }
        },
        "TransferOwnershipRequest": {
            "type": "object",
            "properties": {
                "new_owner": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "stakepoll ledger API",
	Description:      "Staked polls: create, vote, resolve, claim winnings and manage house fees.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
