/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/dataspace4health-lu/credential-generator/pkg/controller/rest/generatorops"
	"github.com/dataspace4health-lu/credential-generator/pkg/doc/ontology"
	"github.com/dataspace4health-lu/credential-generator/pkg/generator"
	"github.com/dataspace4health-lu/credential-generator/pkg/kms/keystore"
	"github.com/dataspace4health-lu/credential-generator/pkg/registration"
	"github.com/dataspace4health-lu/credential-generator/pkg/storage/output"
)

const (
	// api host flag.
	apiHostFlagName      = "api-host"
	apiHostEnvKey        = "CREDGEN_API_HOST"
	apiHostFlagShorthand = "a"
	apiHostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + apiHostEnvKey

	// api token flag.
	apiTokenFlagName      = "api-token"
	apiTokenEnvKey        = "CREDGEN_API_TOKEN" // nolint:gosec
	apiTokenFlagShorthand = "t"
	apiTokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + apiTokenEnvKey

	shapesURLFlagName  = "shapes-url"
	shapesURLEnvKey    = "CREDGEN_SHAPES_URL"
	shapesURLFlagUsage = "URL serving the SHACL shape graph of the 22.10 ontology." +
		" Alternatively, this can be set with the following environment variable: " + shapesURLEnvKey

	implementedShapesURLFlagName  = "implemented-shapes-url"
	implementedShapesURLEnvKey    = "CREDGEN_IMPLEMENTED_SHAPES_URL"
	implementedShapesURLFlagUsage = "URL serving the list of implemented shape names of the 22.10 ontology." +
		" Alternatively, this can be set with the following environment variable: " + implementedShapesURLEnvKey

	catalogURLFlagName  = "catalog-url"
	catalogURLEnvKey    = "CREDGEN_CATALOG_URL"
	catalogURLFlagUsage = "URL serving the LinkML type catalog of the 24.04 ontology." +
		" Alternatively, this can be set with the following environment variable: " + catalogURLEnvKey

	tagusNotaryFlagName  = "tagus-notary-url"
	tagusNotaryEnvKey    = "CREDGEN_TAGUS_NOTARY_URL"
	tagusNotaryFlagUsage = "Notarization endpoint for 22.10 registration-number requests." +
		" Alternatively, this can be set with the following environment variable: " + tagusNotaryEnvKey

	loireNotaryFlagName  = "loire-notary-url"
	loireNotaryEnvKey    = "CREDGEN_LOIRE_NOTARY_URL"
	loireNotaryFlagUsage = "Registration-number lookup endpoint for the 24.04 ontology." +
		" Alternatively, this can be set with the following environment variable: " + loireNotaryEnvKey

	retryIntervalFlagName  = "notary-retry-interval"
	retryIntervalEnvKey    = "CREDGEN_NOTARY_RETRY_INTERVAL"
	retryIntervalFlagUsage = "Delay between notarization retries, as a Go duration." +
		" Default: " + defaultRetryInterval + "." +
		" Alternatively, this can be set with the following environment variable: " + retryIntervalEnvKey

	retryAttemptsFlagName  = "notary-retry-attempts"
	retryAttemptsEnvKey    = "CREDGEN_NOTARY_RETRY_ATTEMPTS"
	retryAttemptsFlagUsage = "Maximum number of notarization attempts." +
		" Default: " + defaultRetryAttempts + "." +
		" Alternatively, this can be set with the following environment variable: " + retryAttemptsEnvKey

	keyFileFlagName      = "key-file"
	keyFileEnvKey        = "CREDGEN_KEY_FILE"
	keyFileFlagShorthand = "k"
	keyFileFlagUsage     = "Path of the signing key JWK. A key is generated there on first use." +
		" Alternatively, this can be set with the following environment variable: " + keyFileEnvKey

	outputDirFlagName      = "output-dir"
	outputDirEnvKey        = "CREDGEN_OUTPUT_DIR"
	outputDirFlagShorthand = "o"
	outputDirFlagUsage     = "Directory generated documents are written to." +
		" Alternatively, this can be set with the following environment variable: " + outputDirEnvKey

	didWebHostFlagName  = "did-web-host"
	didWebHostEnvKey    = "CREDGEN_DID_WEB_HOST"
	didWebHostFlagUsage = "Host anchoring the did:web issuer and key identifier." +
		" Defaults to " + keystore.DefaultHost + " if not set." +
		" Alternatively, this can be set with the following environment variable: " + didWebHostEnvKey

	logLevelFlagName  = "log-level"
	logLevelEnvKey    = "CREDGEN_LOG_LEVEL"
	logLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	tlsCertFileFlagName      = "tls-cert-file"
	tlsCertFileEnvKey        = "TLS_CERT_FILE"
	tlsCertFileFlagShorthand = "c"
	tlsCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + tlsCertFileEnvKey

	tlsKeyFileFlagName  = "tls-key-file"
	tlsKeyFileEnvKey    = "TLS_KEY_FILE"
	tlsKeyFileFlagUsage = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + tlsKeyFileEnvKey

	defaultRetryInterval = "5s"
	defaultRetryAttempts = "12"
	defaultKeyFile       = "signing-key.jwk"
	defaultOutputDir     = "generated"
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("credential-generator/startcmd")
)

type serverParameters struct {
	server server

	host, token              string
	tlsCertFile, tlsKeyFile  string
	shapesURL, catalogURL    string
	implementedShapesURL     string
	tagusNotary, loireNotary string
	keyFile, outputDir       string
	didWebHost               string
	retryInterval            time.Duration
	retryAttempts            uint64
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router)
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCmd(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCmd(server server) *cobra.Command { //nolint: funlen
	return &cobra.Command{
		Use:   "start",
		Short: "Start the generator",
		Long:  `Start the credential generator controller API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logLevel, err := getUserSetVar(cmd, logLevelFlagName, logLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			parameters := &serverParameters{server: server}

			parameters.host, err = getUserSetVar(cmd, apiHostFlagName, apiHostEnvKey, false)
			if err != nil {
				return err
			}

			parameters.token, err = getUserSetVar(cmd, apiTokenFlagName, apiTokenEnvKey, true)
			if err != nil {
				return err
			}

			parameters.shapesURL, err = getUserSetVar(cmd, shapesURLFlagName, shapesURLEnvKey, true)
			if err != nil {
				return err
			}

			parameters.implementedShapesURL, err = getUserSetVar(cmd, implementedShapesURLFlagName,
				implementedShapesURLEnvKey, true)
			if err != nil {
				return err
			}

			parameters.catalogURL, err = getUserSetVar(cmd, catalogURLFlagName, catalogURLEnvKey, true)
			if err != nil {
				return err
			}

			parameters.tagusNotary, err = getUserSetVar(cmd, tagusNotaryFlagName, tagusNotaryEnvKey, true)
			if err != nil {
				return err
			}

			parameters.loireNotary, err = getUserSetVar(cmd, loireNotaryFlagName, loireNotaryEnvKey, true)
			if err != nil {
				return err
			}

			parameters.retryInterval, err = getRetryInterval(cmd)
			if err != nil {
				return err
			}

			parameters.retryAttempts, err = getRetryAttempts(cmd)
			if err != nil {
				return err
			}

			parameters.keyFile, err = getUserSetVarDefault(cmd, keyFileFlagName, keyFileEnvKey, defaultKeyFile)
			if err != nil {
				return err
			}

			parameters.outputDir, err = getUserSetVarDefault(cmd, outputDirFlagName, outputDirEnvKey, defaultOutputDir)
			if err != nil {
				return err
			}

			parameters.didWebHost, err = getUserSetVar(cmd, didWebHostFlagName, didWebHostEnvKey, true)
			if err != nil {
				return err
			}

			parameters.tlsCertFile, err = getUserSetVar(cmd, tlsCertFileFlagName, tlsCertFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters.tlsKeyFile, err = getUserSetVar(cmd, tlsKeyFileFlagName, tlsKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			return startServer(parameters)
		},
	}
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(apiHostFlagName, apiHostFlagShorthand, "", apiHostFlagUsage)
	startCmd.Flags().StringP(apiTokenFlagName, apiTokenFlagShorthand, "", apiTokenFlagUsage)
	startCmd.Flags().StringP(shapesURLFlagName, "", "", shapesURLFlagUsage)
	startCmd.Flags().StringP(implementedShapesURLFlagName, "", "", implementedShapesURLFlagUsage)
	startCmd.Flags().StringP(catalogURLFlagName, "", "", catalogURLFlagUsage)
	startCmd.Flags().StringP(tagusNotaryFlagName, "", "", tagusNotaryFlagUsage)
	startCmd.Flags().StringP(loireNotaryFlagName, "", "", loireNotaryFlagUsage)
	startCmd.Flags().StringP(retryIntervalFlagName, "", "", retryIntervalFlagUsage)
	startCmd.Flags().StringP(retryAttemptsFlagName, "", "", retryAttemptsFlagUsage)
	startCmd.Flags().StringP(keyFileFlagName, keyFileFlagShorthand, "", keyFileFlagUsage)
	startCmd.Flags().StringP(outputDirFlagName, outputDirFlagShorthand, "", outputDirFlagUsage)
	startCmd.Flags().StringP(didWebHostFlagName, "", "", didWebHostFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, "", "", logLevelFlagUsage)
	startCmd.Flags().StringP(tlsCertFileFlagName, tlsCertFileFlagShorthand, "", tlsCertFileFlagUsage)
	startCmd.Flags().StringP(tlsKeyFileFlagName, "", "", tlsKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVarDefault(cmd *cobra.Command, flagName, envKey, defaultValue string) (string, error) {
	value, err := getUserSetVar(cmd, flagName, envKey, true)
	if err != nil {
		return "", err
	}

	if value == "" {
		value = defaultValue
	}

	return value, nil
}

func getRetryInterval(cmd *cobra.Command) (time.Duration, error) {
	value, err := getUserSetVar(cmd, retryIntervalFlagName, retryIntervalEnvKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		return 0, nil
	}

	interval, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse retry interval '%s' : %w", value, err)
	}

	return interval, nil
}

func getRetryAttempts(cmd *cobra.Command) (uint64, error) {
	value, err := getUserSetVar(cmd, retryAttemptsFlagName, retryAttemptsEnvKey, true)
	if err != nil {
		return 0, err
	}

	if value == "" {
		return 0, nil
	}

	attempts, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("failed to parse retry attempts '%s' : %w", value, err)
	}

	return attempts, nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startServer(parameters *serverParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	registry := ontology.NewRegistry(ontology.RegistryConfig{
		ShapesURL:            parameters.shapesURL,
		ImplementedShapesURL: parameters.implementedShapesURL,
		CatalogURL:           parameters.catalogURL,
	})

	resolver := registration.New(registration.Config{
		TagusEndpoint: parameters.tagusNotary,
		LoireEndpoint: parameters.loireNotary,
		Retry: registration.RetryPolicy{
			Interval:    parameters.retryInterval,
			MaxAttempts: parameters.retryAttempts,
		},
	})

	gen := generator.New(generator.Config{
		Registry:     registry,
		Keys:         keystore.NewFileStore(parameters.keyFile),
		Sink:         output.NewFileSink(),
		Registration: resolver,
		Host:         parameters.didWebHost,
	})

	operation := generatorops.New(generatorops.Config{
		Generator: gen,
		Registry:  registry,
		OutputDir: parameters.outputDir,
	})

	router := mux.NewRouter()

	if parameters.token != "" {
		router.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range operation.GetRESTHandlers() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	logger.Infof("Starting credential generator rest on host [%s]", parameters.host)

	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err := parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start credential generator rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}
