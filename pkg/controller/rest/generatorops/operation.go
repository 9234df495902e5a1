/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package generatorops exposes the generation workflows as controller REST
// API endpoints.
package generatorops

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"

	"github.com/dataspace4health-lu/credential-generator/pkg/controller/rest"
	"github.com/dataspace4health-lu/credential-generator/pkg/doc/credential"
	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
	"github.com/dataspace4health-lu/credential-generator/pkg/doc/proofchain"
	"github.com/dataspace4health-lu/credential-generator/pkg/generator"
	"github.com/dataspace4health-lu/credential-generator/pkg/kms/keystore"
	"github.com/dataspace4health-lu/credential-generator/pkg/registration"
)

var logger = log.New("credential-generator/rest")

const (
	ontologyOperationID = "/ontology"
	shapesPath          = ontologyOperationID + "/{version}/shapes"
	shapeByTypePath     = shapesPath + "/{type}"

	credentialsOperationID = "/credentials"
	signCredentialPath     = credentialsOperationID + "/sign"
	serviceOfferingPath    = credentialsOperationID + "/service-offering"

	registrationNumbersPath = "/registration-numbers"
)

// Operation exposes the generation workflows over REST.
type Operation struct {
	handlers  []rest.Handler
	generator *generator.Generator
	registry  *ontology.Registry
	outputDir string
}

// Config carries the collaborators of the REST operations.
type Config struct {
	Generator *generator.Generator
	Registry  *ontology.Registry

	// OutputDir is the directory documents are written to when a request
	// names no output path of its own.
	OutputDir string
}

// New returns the generation REST operations.
func New(config Config) *Operation {
	o := &Operation{generator: config.Generator, registry: config.Registry, outputDir: config.OutputDir}
	o.registerHandler()

	return o
}

// GetRESTHandlers gets all API handlers available for this service.
func (o *Operation) GetRESTHandlers() []rest.Handler {
	return o.handlers
}

func (o *Operation) registerHandler() {
	o.handlers = []rest.Handler{
		rest.NewHTTPHandler(shapesPath, http.MethodGet, o.Shapes),
		rest.NewHTTPHandler(shapeByTypePath, http.MethodGet, o.ShapeByType),
		rest.NewHTTPHandler(credentialsOperationID, http.MethodPost, o.GenerateCredential),
		rest.NewHTTPHandler(signCredentialPath, http.MethodPost, o.SignCredential),
		rest.NewHTTPHandler(serviceOfferingPath, http.MethodPost, o.GenerateServiceOffering),
		rest.NewHTTPHandler(registrationNumbersPath, http.MethodPost, o.GenerateRegistrationNumber),
	}
}

// Shapes swagger:route GET /ontology/{version}/shapes ontology shapesReq
//
// Returns every normalized shape schema of an ontology version.
//
// Responses:
//    default: genericError
//        200: shapesRes
func (o *Operation) Shapes(rw http.ResponseWriter, req *http.Request) {
	version := mux.Vars(req)["version"]

	schemas, err := o.registry.ResolveAll(req.Context(), version)
	if err != nil {
		sendError(rw, err)
		return
	}

	sendResponse(rw, http.StatusOK, schemas)
}

// ShapeByType swagger:route GET /ontology/{version}/shapes/{type} ontology shapeByTypeReq
//
// Returns the normalized shape schema of one credential subject type.
//
// Responses:
//    default: genericError
//        200: shapeByTypeRes
func (o *Operation) ShapeByType(rw http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)

	schema, err := o.registry.Resolve(req.Context(), vars["version"], vars["type"])
	if err != nil {
		sendError(rw, err)
		return
	}

	sendResponse(rw, http.StatusOK, schema)
}

// GenerateCredential swagger:route POST /credentials credentials generateCredentialReq
//
// Runs the single-credential generation workflow.
//
// Responses:
//    default: genericError
//        201: generationRes
func (o *Operation) GenerateCredential(rw http.ResponseWriter, req *http.Request) {
	request := generator.CredentialRequest{}
	if !decodeRequest(rw, req, &request) {
		return
	}

	if request.OutputPath == "" {
		request.OutputPath = o.outputDir
	}

	result, err := o.generator.GenerateCredential(req.Context(), request)
	if err != nil {
		sendError(rw, err)
		return
	}

	sendResponse(rw, http.StatusCreated, newGenerationResponse(result))
}

// SignCredential swagger:route POST /credentials/sign credentials signCredentialReq
//
// Signs or chain-extends an externally supplied document.
//
// Responses:
//    default: genericError
//        200: generationRes
func (o *Operation) SignCredential(rw http.ResponseWriter, req *http.Request) {
	request := generator.SignRequest{}
	if !decodeRequest(rw, req, &request) {
		return
	}

	result, err := o.generator.SignDocument(req.Context(), request)
	if err != nil {
		sendError(rw, err)
		return
	}

	sendResponse(rw, http.StatusOK, newGenerationResponse(result))
}

// GenerateServiceOffering swagger:route POST /credentials/service-offering credentials serviceOfferingReq
//
// Runs the service-offering composite workflow.
//
// Responses:
//    default: genericError
//        201: generationRes
func (o *Operation) GenerateServiceOffering(rw http.ResponseWriter, req *http.Request) {
	request := generator.BundleRequest{}
	if !decodeRequest(rw, req, &request) {
		return
	}

	if request.OutputPath == "" {
		request.OutputPath = o.outputDir
	}

	result, err := o.generator.GenerateServiceOfferingBundle(req.Context(), request)
	if err != nil {
		sendError(rw, err)
		return
	}

	sendResponse(rw, http.StatusCreated, newGenerationResponse(result))
}

// GenerateRegistrationNumber swagger:route POST /registration-numbers registration registrationNumberReq
//
// Resolves a registration-number assertion through the notarization service.
//
// Responses:
//    default: genericError
//        201: generationRes
func (o *Operation) GenerateRegistrationNumber(rw http.ResponseWriter, req *http.Request) {
	request := generator.RegistrationRequest{}
	if !decodeRequest(rw, req, &request) {
		return
	}

	if request.OutputPath == "" {
		request.OutputPath = o.outputDir
	}

	result, err := o.generator.GenerateRegistrationNumber(req.Context(), request)
	if err != nil {
		sendError(rw, err)
		return
	}

	sendResponse(rw, http.StatusCreated, newGenerationResponse(result))
}

func decodeRequest(rw http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		sendErrorWithStatus(rw, http.StatusBadRequest, err)
		return false
	}

	return true
}

// errorStatus maps workflow failures onto HTTP status codes. Upstream
// outages surface as bad gateway, caller mistakes as bad request.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ontology.ErrUnknownType):
		return http.StatusNotFound
	case errors.Is(err, ontology.ErrUnsupportedVersion),
		errors.Is(err, credential.ErrMissingDependencyID),
		errors.Is(err, proofchain.ErrPreviousProofNotFound):
		return http.StatusBadRequest
	case errors.Is(err, ontology.ErrOntologyFetch),
		errors.Is(err, registration.ErrRegistrationLookup):
		return http.StatusBadGateway
	case errors.Is(err, proofchain.ErrKeyLoad), errors.Is(err, keystore.ErrKeyLoad):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func sendError(rw http.ResponseWriter, err error) {
	sendErrorWithStatus(rw, errorStatus(err), err)
}

func sendErrorWithStatus(rw http.ResponseWriter, status int, err error) {
	sendResponse(rw, status, genericError{Message: err.Error()})
}

func sendResponse(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		logger.Errorf("unable to send response, %s", err)
	}
}
