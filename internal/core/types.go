package core

import "herdcore/pkg/domain"

type (
	EntityType     = domain.EntityType
	Animal         = domain.Animal
	AnimalPatch    = domain.AnimalPatch
	AnimalEvent    = domain.AnimalEvent
	EventInput     = domain.EventInput
	EventCategory  = domain.EventCategory
	EventDetail    = domain.EventDetail
	CostEntry      = domain.CostEntry
	CostInput      = domain.CostInput
	Dimension      = domain.Dimension
	DimensionInput = domain.DimensionInput
	DimensionKind  = domain.DimensionKind
	Change         = domain.Change
	Action         = domain.Action
	Envelope       = domain.Envelope
	Topic          = domain.Topic
)

const (
	EntityAnimal    = domain.EntityAnimal
	EntityEvent     = domain.EntityEvent
	EntityCost      = domain.EntityCost
	EntityDimension = domain.EntityDimension
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
)

const (
	DimensionLocation = domain.DimensionLocation
	DimensionGroup    = domain.DimensionGroup
	DimensionParty    = domain.DimensionParty
	DimensionProduct  = domain.DimensionProduct
)
