package streams

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// UnmarshalStreamImage unmarshals a DynamoDB stream image (NewImage or
// OldImage) into out. The Lambda events package and the service SDK use
// different attribute-value types, so the image is converted first.
func UnmarshalStreamImage(image map[string]events.DynamoDBAttributeValue, out any) error {
	if image == nil {
		return fmt.Errorf("stream image is nil")
	}

	item, err := convertStreamImage(image)
	if err != nil {
		return fmt.Errorf("failed to convert stream image: %w", err)
	}
	return attributevalue.UnmarshalMap(item, out)
}

func convertStreamImage(image map[string]events.DynamoDBAttributeValue) (map[string]dynamodbtypes.AttributeValue, error) {
	item := make(map[string]dynamodbtypes.AttributeValue, len(image))
	for k, v := range image {
		converted, err := convertStreamAttribute(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		item[k] = converted
	}
	return item, nil
}

func convertStreamAttribute(val events.DynamoDBAttributeValue) (dynamodbtypes.AttributeValue, error) {
	switch val.DataType() {
	case events.DataTypeString:
		return &dynamodbtypes.AttributeValueMemberS{Value: val.String()}, nil
	case events.DataTypeNumber:
		return &dynamodbtypes.AttributeValueMemberN{Value: val.Number()}, nil
	case events.DataTypeBoolean:
		return &dynamodbtypes.AttributeValueMemberBOOL{Value: val.Boolean()}, nil
	case events.DataTypeBinary:
		return &dynamodbtypes.AttributeValueMemberB{Value: val.Binary()}, nil
	case events.DataTypeNull:
		return &dynamodbtypes.AttributeValueMemberNULL{Value: val.IsNull()}, nil
	case events.DataTypeMap:
		mapVal, err := convertStreamImage(val.Map())
		if err != nil {
			return nil, err
		}
		return &dynamodbtypes.AttributeValueMemberM{Value: mapVal}, nil
	case events.DataTypeList:
		listVal := make([]dynamodbtypes.AttributeValue, len(val.List()))
		for i, entry := range val.List() {
			converted, err := convertStreamAttribute(entry)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			listVal[i] = converted
		}
		return &dynamodbtypes.AttributeValueMemberL{Value: listVal}, nil
	case events.DataTypeStringSet:
		return &dynamodbtypes.AttributeValueMemberSS{Value: val.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &dynamodbtypes.AttributeValueMemberNS{Value: val.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &dynamodbtypes.AttributeValueMemberBS{Value: val.BinarySet()}, nil
	default:
		return nil, fmt.Errorf("unsupported attribute type: %v", val.DataType())
	}
}
