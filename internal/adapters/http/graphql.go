package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/aquaripple/aquaripple/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the lookup engine.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	waterBodyType := graphql.NewObject(graphql.ObjectConfig{
		Name: "WaterBodyLookup",
		Fields: graphql.Fields{
			"isWaterBody":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"waterBodyName": &graphql.Field{Type: graphql.String},
			"message":       &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"waterBody": &graphql.Field{
				Type:        waterBodyType,
				Description: "Whether a point lies on a water body, and its name if known",
				Args: graphql.FieldConfigArgument{
					"latitude":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"longitude": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					point := domain.Coordinate{
						Latitude:  p.Args["latitude"].(float64),
						Longitude: p.Args["longitude"].(float64),
					}
					res, err := deps.Locations.Lookup(p.Context, point)
					if err != nil {
						if errors.Is(err, domain.ErrInvalidCoordinate) {
							return nil, err
						}
						return nil, errors.New("failed to look up location")
					}
					return map[string]interface{}{
						"isWaterBody":   res.IsWaterBody,
						"waterBodyName": deref(res.WaterBodyName),
						"message":       deref(res.Message),
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func deref(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
