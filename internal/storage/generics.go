package storage

// Models - list all models
var Models = []any{
	&Deployment{},
}
