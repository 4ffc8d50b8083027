package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationPrefsValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"user_id", "email"},
		"properties": bson.M{
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},
			"email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
			},
			"booking_emails": bson.M{
				"bsonType": "bool",
			},
			"message_emails": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
