package beanctx

const (
	emptyString = ""
	pathSep     = " -> "
)

// Scope controls how many instances the factory produces for a definition.
type Scope string

const (
	ScopeSingleton Scope = "singleton"
	ScopePrototype Scope = "prototype"
)

type tag string

const (
	property tag = "di.property" // di.property maps a property name onto a field. The field MUST be exported.
)

const (
	initializerMethod = "Initialize"
	destroyMethod     = "Destroy"
)
