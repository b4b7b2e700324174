package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           reflexiad API
// @version         1.0
// @description     Resource-aware adaptive control daemon fronting a local LLM runtime.
//
// @contact.name   reflexiad maintainers
// @contact.url    https://github.com/your-org/reflexiad
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
