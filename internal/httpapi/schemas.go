package httpapi

import (
	z "github.com/Oudwins/zog"
)

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type assignRequest struct {
	Agent string `json:"agent"`
}

type moveRequest struct {
	Direction string `json:"direction"`
}

const (
	directionForward  = "forward"
	directionBackward = "backward"
)

var createSchema = z.Struct(z.Shape{
	"Title":       z.String().Required(z.Message("title is required")).Trim(),
	"Description": z.String().Optional().Trim(),
})

var assignSchema = z.Struct(z.Shape{
	"Agent": z.String().Optional().Trim(),
})

var moveSchema = z.Struct(z.Shape{
	"Direction": z.String().Required().Trim().TestFunc(isDirection, z.Message("direction must be forward or backward")),
})

func isDirection(valPtr *string, _ z.Ctx) bool {
	return *valPtr == directionForward || *valPtr == directionBackward
}
