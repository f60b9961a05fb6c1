/*
Copyright 2020 The node-detacher authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	zap2 "go.uber.org/zap"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"

	"github.com/darkbrains/ip-address-controller/api/v1alpha1"
	"github.com/darkbrains/ip-address-controller/internal/cloud/factory"
	"github.com/darkbrains/ip-address-controller/internal/clusterview"
	"github.com/darkbrains/ip-address-controller/internal/httpserver"
	"github.com/darkbrains/ip-address-controller/internal/leader"
	"github.com/darkbrains/ip-address-controller/internal/procinfo"
	"github.com/darkbrains/ip-address-controller/internal/reconciler"
	"github.com/darkbrains/ip-address-controller/internal/supervisor"
	// +kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

func init() {
	_ = clientgoscheme.AddToScheme(scheme)
	_ = v1alpha1.AddToScheme(scheme)
	// +kubebuilder:scaffold:scheme
}

func main() {
	var logLevel string
	flag.StringVar(&logLevel, "log-level", "info", "Log level. Must be one of debug, info, warn, error")
	flag.Parse()

	ctrl.SetLogger(zap.New(func(o *zap.Options) {
		o.Development = true
		lvl := zap2.NewAtomicLevelAt(stringToZapLogLevel(logLevel))
		o.Level = &lvl
	}))

	leaseName := envOr("LEASE_NAME", leader.DefaultLeaseName)
	leaseDuration := envDurationSeconds("LEASE_DURATION", leader.DefaultLeaseDuration)
	metricsPort := envOr("METRICS_PORT", "9999")
	controllerVersion := envOr("CONTROLLER_VERSION", "dev")
	clusterName := os.Getenv("CLUSTER_NAME")

	procinfo.SetBuildInfo(controllerVersion, clusterName)

	podNamespace := os.Getenv("POD_NAMESPACE")
	if podNamespace == "" {
		podNamespace = "default"
	}
	identity := os.Getenv("POD_NAME")
	if identity == "" {
		hostname, err := os.Hostname()
		if err != nil {
			setupLog.Error(err, "unable to determine hostname for leader identity")
			os.Exit(1)
		}
		identity = hostname
	}

	cfg := ctrl.GetConfigOrDie()

	mgr, err := ctrl.NewManager(cfg, ctrl.Options{
		Scheme:         scheme,
		LeaderElection: false,
		// The manager's own metrics server is disabled; httpserver.Server serves
		// /metrics from the same controller-runtime registry instead, so it can
		// also serve /healthz and /readyz with leadership-aware semantics.
		Metrics: metricsserver.Options{BindAddress: "0"},
	})
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		setupLog.Error(err, "unable to build Kubernetes clientset")
		os.Exit(1)
	}

	view := clusterview.New(mgr.GetClient())

	rec := &reconciler.Reconciler{
		View:      view,
		NewDriver: factory.New,
		Log:       ctrl.Log.WithName("reconciler"),
	}

	super := supervisor.New(mgr.GetClient(), rec, ctrl.Log.WithName("supervisor"))

	gate := leader.New(leader.Config{
		LeaseName:     leaseName,
		Namespace:     podNamespace,
		Identity:      identity,
		LeaseDuration: leaseDuration,
		OnAcquired: func() {
			procinfo.SetLeader(true)
			super.OnAcquired(context.Background())
		},
		OnLost: func() {
			procinfo.SetLeader(false)
			super.OnLost()
		},
	}, ctrl.Log.WithName("leader"))

	synced := make(chan struct{})
	go func() {
		if mgr.GetCache().WaitForCacheSync(context.Background()) {
			close(synced)
		}
	}()

	ready := func() bool {
		select {
		case <-synced:
		default:
			return false
		}
		if !gate.IsLeader() {
			return true
		}
		select {
		case <-super.FirstTickDone():
			return true
		default:
			return false
		}
	}

	srv := httpserver.New(":"+metricsPort, ready, ctrl.Log.WithName("httpserver"))

	ctx := ctrl.SetupSignalHandler()

	go func() {
		if err := srv.Run(ctx); err != nil {
			setupLog.Error(err, "http server stopped unexpectedly")
		}
	}()

	go func() {
		if err := gate.Run(ctx, clientset); err != nil {
			setupLog.Error(err, "leader election stopped unexpectedly")
			os.Exit(1)
		}
	}()

	setupLog.Info("starting manager")
	if err := mgr.Start(ctx); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDurationSeconds(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		setupLog.Error(fmt.Errorf("invalid %s=%q: %w", key, v, err), "falling back to default")
		return def
	}
	return time.Duration(secs) * time.Second
}
