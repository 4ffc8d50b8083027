package validators

import "go.mongodb.org/mongo-driver/bson"

var ConversationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"participant_ids", "created_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},
			"participant_ids": bson.M{
				"bsonType": "array",
				"minItems": 2,
				"maxItems": 2,
				"items": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 64,
				},
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var MessageValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"conversation_id", "sender_id", "text", "created_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},
			"conversation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
			"sender_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"text": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 4000,
			},
			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var ReadMarkerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"conversation_id", "user_id", "last_read_at"},
		"properties": bson.M{
			"conversation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"last_read_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
