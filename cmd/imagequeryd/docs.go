package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           imagequery API
// @version         1.0
// @description     Ask a vision model a question about an uploaded image.
//
// @contact.name   imagequery maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http https
