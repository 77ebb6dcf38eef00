// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package k8sevents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/esnode-io/esnode-core/pkg/registry"
	"github.com/esnode-io/esnode-core/pkg/status"
)

func warningEvent(name string, uid types.UID) *corev1.Event {
	return &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "default", UID: uid},
		Type:       corev1.EventTypeWarning,
		Reason:     "BackOff",
	}
}

func TestCollectDetectsNewWarningEvent(t *testing.T) {
	//nolint:staticcheck // SA1019: NewSimpleClientset is adequate for basic test needs
	fakeClient := k8sfake.NewSimpleClientset(warningEvent("ev-1", "uid-1"))
	c := New(fakeClient, "default")

	reg := registry.New()
	st := status.New()

	err := c.Collect(context.Background(), reg, st)
	require.NoError(t, err)

	assert.True(t, st.Snapshot().K8sEventsDetected)
}

func TestCollectDoesNotRedetectSameEvent(t *testing.T) {
	//nolint:staticcheck // SA1019: NewSimpleClientset is adequate for basic test needs
	fakeClient := k8sfake.NewSimpleClientset(warningEvent("ev-1", "uid-1"))
	c := New(fakeClient, "default")
	reg := registry.New()
	st := status.New()

	require.NoError(t, c.Collect(context.Background(), reg, st))
	require.NoError(t, c.Collect(context.Background(), reg, st))

	assert.False(t, st.Snapshot().K8sEventsDetected)
}

func TestCollectNilClientIsANoop(t *testing.T) {
	c := New(nil, "default")
	reg := registry.New()
	st := status.New()

	err := c.Collect(context.Background(), reg, st)
	require.NoError(t, err)
	assert.False(t, st.Snapshot().K8sEventsDetected)
}
