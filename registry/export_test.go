package registry

// NewWithAPIForTest exposes newWithAPI so tests can
// plug a fake ECR API.
var NewWithAPIForTest = newWithAPI
