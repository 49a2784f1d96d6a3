package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type IDType string

const (
	IDTypeJob           IDType = "job"
	IDTypeCoordination  IDType = "coord"
	IDTypeMessage       IDType = "msg"
	IDTypeCollaboration IDType = "collab"
	IDTypeConflict      IDType = "conflict"
	IDTypeInsight       IDType = "insight"
)

var validIDTypes = map[IDType]bool{
	IDTypeJob:           true,
	IDTypeCoordination:  true,
	IDTypeMessage:       true,
	IDTypeCollaboration: true,
	IDTypeConflict:      true,
	IDTypeInsight:       true,
}

var idRegex = regexp.MustCompile(`^(job|coord|msg|collab|conflict|insight)_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func GenerateID(idType IDType) (string, error) {
	if !validIDTypes[idType] {
		return "", fmt.Errorf("invalid ID type: %s", idType)
	}
	return fmt.Sprintf("%s_%s", idType, uuid.NewString()), nil
}

func ValidateID(id string) bool {
	return idRegex.MatchString(id)
}

func ParseIDType(id string) (IDType, error) {
	if !ValidateID(id) {
		return "", fmt.Errorf("invalid ID format: %s", id)
	}
	prefix, _, _ := strings.Cut(id, "_")
	return IDType(prefix), nil
}
